package model

import "testing"

func TestKindForFile(t *testing.T) {
	tests := []struct {
		path     string
		expected MediaKind
	}{
		{"/tmp/clip.mp4", MediaVideo},
		{"/tmp/clip.MKV", MediaVideo},
		{"/tmp/clip.webm", MediaVideo},
		{"/tmp/track.mp3", MediaAudio},
		{"/tmp/track.m4a", MediaAudio},
		{"/tmp/track.opus", MediaAudio},
		{"/tmp/archive.zip", MediaDocument},
		{"/tmp/report.pdf", MediaDocument},
		{"/tmp/noext", MediaDocument},
	}

	for _, test := range tests {
		result := KindForFile(test.path)
		if result != test.expected {
			t.Errorf("KindForFile(%s) = %s, expected %s", test.path, result, test.expected)
		}
	}
}

func TestFetchResultSucceeded(t *testing.T) {
	ok := FetchResult{File: &FetchedFile{Path: "/tmp/clip.mp4"}}
	if !ok.Succeeded() {
		t.Error("Expected result with file to be successful")
	}

	fail := FetchResult{Fail: NewFetchError(ErrTooLarge, "82MB after transcode", nil)}
	if fail.Succeeded() {
		t.Error("Expected result with failure to not be successful")
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := NewFetchError(ErrExtractionFailed, "engine exited", nil)
	outer := NewFetchError(ErrTimeout, "deadline", inner)

	if outer.Unwrap() != inner {
		t.Error("Expected Unwrap to return the wrapped error")
	}

	msg := outer.Error()
	if msg == "" {
		t.Error("Expected non-empty error message")
	}
}
