package fetch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch-bot/internal/guard"
	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
	"github.com/vidfetch/vidfetch-bot/internal/ratelimit"
	"github.com/vidfetch/vidfetch-bot/internal/stats"
)

// Test ceilings: delivery 100 bytes, download 1000 bytes
const (
	testFileCeiling     = 100
	testDownloadCeiling = 1000
)

type fakeExtractor struct {
	dir      string
	size     int
	ext      string
	err      error
	calls    int32
	probes   int32
	blocked  chan struct{} // when set, Extract waits for close or ctx
	progress []int         // percent values to report before returning
}

func (f *fakeExtractor) Extract(ctx context.Context, url string, quality Quality, maxBytes int64, onProgress ProgressFunc) (*Extraction, error) {
	atomic.AddInt32(&f.calls, 1)

	if f.blocked != nil {
		select {
		case <-f.blocked:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	path := platform.UniqueTempPath(f.dir, f.ext)
	if err := os.WriteFile(path, bytes.Repeat([]byte("v"), f.size), 0644); err != nil {
		return nil, err
	}
	return &Extraction{Path: path, Title: "Test Clip", Uploader: "Tester"}, nil
}

func (f *fakeExtractor) Probe(ctx context.Context, url string) (*ProbeInfo, error) {
	atomic.AddInt32(&f.probes, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &ProbeInfo{Title: "Test Clip", Uploader: "Tester", Duration: 2 * time.Minute}, nil
}

type fakeTranscoder struct {
	size  int
	err   error
	calls int32
}

func (f *fakeTranscoder) Compress(ctx context.Context, inputPath string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	out := inputPath[:len(inputPath)-len(filepath.Ext(inputPath))] + "-small.mp4"
	if err := os.WriteFile(out, bytes.Repeat([]byte("c"), f.size), 0644); err != nil {
		return "", err
	}
	return out, nil
}

func newTestOrchestrator(ex Extractor, tr Transcoder, timeout time.Duration) *Orchestrator {
	return NewOrchestrator(
		ratelimit.NewGate(5, time.Minute),
		guard.NewGuard(),
		ex, tr,
		stats.NewTracker(),
		testFileCeiling, testDownloadCeiling,
		timeout,
	)
}

func tempFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	return len(entries)
}

func TestFetchHappyPath(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 50, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	res := o.Fetch(context.Background(), 1, "https://youtube.com/watch?v=x", QualityBest, nil)
	if !res.Succeeded() {
		t.Fatalf("Expected success, got %v", res.Fail)
	}

	if res.File.Kind != model.MediaVideo {
		t.Errorf("Expected video kind, got %s", res.File.Kind)
	}
	if res.File.Size != 50 {
		t.Errorf("Expected size 50, got %d", res.File.Size)
	}
	if res.File.Site != "YouTube" {
		t.Errorf("Expected YouTube site, got %s", res.File.Site)
	}
	if _, err := os.Stat(res.File.Path); err != nil {
		t.Errorf("Expected fetched file to exist: %v", err)
	}

	platform.RemoveFile(res.File.Path)
}

func TestFetchInvalidURL(t *testing.T) {
	ex := &fakeExtractor{dir: t.TempDir(), size: 10, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	for _, bad := range []string{"not a url at all", "ftp://example.com/x", "/relative/path", "example.com/video"} {
		res := o.Fetch(context.Background(), 1, bad, QualityBest, nil)
		if res.Succeeded() || res.Fail.Kind != model.ErrInvalidURL {
			t.Errorf("Expected InvalidURL for %q, got %+v", bad, res)
		}
	}

	if atomic.LoadInt32(&ex.calls) != 0 {
		t.Error("Expected extractor to not be invoked for invalid URLs")
	}
}

func TestFetchRateLimitShortCircuits(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 10, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	for i := 0; i < 5; i++ {
		res := o.Fetch(context.Background(), 1, "https://vimeo.com/123", QualityBest, nil)
		if !res.Succeeded() {
			t.Fatalf("Expected request %d to succeed, got %v", i+1, res.Fail)
		}
		platform.RemoveFile(res.File.Path)
	}

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/123", QualityBest, nil)
	if res.Succeeded() || res.Fail.Kind != model.ErrRateLimited {
		t.Fatalf("Expected RateLimited on 6th request, got %+v", res)
	}

	if atomic.LoadInt32(&ex.calls) != 5 {
		t.Errorf("Expected extractor untouched by the denied request, got %d calls", ex.calls)
	}
}

func TestFetchSecondRequestWhileBusy(t *testing.T) {
	dir := t.TempDir()
	release := make(chan struct{})
	ex := &fakeExtractor{dir: dir, size: 10, ext: "mp4", blocked: release}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	first := make(chan model.FetchResult, 1)
	go func() {
		first <- o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	}()

	// Wait until the first fetch holds the guard
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&ex.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("First fetch never reached the extractor")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	second := o.Fetch(context.Background(), 1, "https://vimeo.com/2", QualityBest, nil)
	if second.Succeeded() || second.Fail.Kind != model.ErrAlreadyInProgress {
		t.Fatalf("Expected AlreadyInProgress, got %+v", second)
	}

	close(release)
	res := <-first
	if !res.Succeeded() {
		t.Fatalf("Expected first download to be unaffected, got %v", res.Fail)
	}
	platform.RemoveFile(res.File.Path)
}

func TestFetchDownloadCeilingExceeded(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: testDownloadCeiling + 1, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	if res.Succeeded() || res.Fail.Kind != model.ErrExtractionFailed {
		t.Fatalf("Expected ExtractionFailed for oversize download, got %+v", res)
	}

	if n := tempFileCount(t, dir); n != 0 {
		t.Errorf("Expected no partial files retained, found %d", n)
	}
}

func TestFetchTranscodeSuccess(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 800, ext: "mp4"} // over delivery, under download ceiling
	tr := &fakeTranscoder{size: 40}
	o := newTestOrchestrator(ex, tr, time.Minute)

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	if !res.Succeeded() {
		t.Fatalf("Expected success after transcode, got %v", res.Fail)
	}

	if res.File.Size != 40 {
		t.Errorf("Expected transcoded size 40, got %d", res.File.Size)
	}
	if res.File.Kind != model.MediaVideo {
		t.Errorf("Expected transcoded file delivered as video, got %s", res.File.Kind)
	}
	if atomic.LoadInt32(&tr.calls) != 1 {
		t.Errorf("Expected exactly one transcode invocation, got %d", tr.calls)
	}

	// Only the transcoded file remains; the oversize original is gone
	if n := tempFileCount(t, dir); n != 1 {
		t.Errorf("Expected exactly the transcoded file in temp dir, found %d entries", n)
	}

	platform.RemoveFile(res.File.Path)
}

func TestFetchTranscodeFailureIsTooLarge(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 800, ext: "mp4"}
	tr := &fakeTranscoder{err: errors.New("ffmpeg exited with code 1")}
	o := newTestOrchestrator(ex, tr, time.Minute)

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	if res.Succeeded() || res.Fail.Kind != model.ErrTooLarge {
		t.Fatalf("Expected TooLarge when transcode fails, got %+v", res)
	}

	if n := tempFileCount(t, dir); n != 0 {
		t.Errorf("Expected all temp files removed, found %d", n)
	}
}

func TestFetchStillOversizeAfterTranscode(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 800, ext: "mp4"}
	tr := &fakeTranscoder{size: testFileCeiling + 1}
	o := newTestOrchestrator(ex, tr, time.Minute)

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	if res.Succeeded() {
		t.Fatal("Expected failure: success must never exceed the delivery ceiling")
	}
	if res.Fail.Kind != model.ErrTooLarge {
		t.Fatalf("Expected TooLarge, got %s", res.Fail.Kind)
	}

	if n := tempFileCount(t, dir); n != 0 {
		t.Errorf("Expected all temp files removed, found %d", n)
	}
}

func TestFetchTimeout(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 10, ext: "mp4", blocked: make(chan struct{})} // never released
	o := newTestOrchestrator(ex, &fakeTranscoder{}, 20*time.Millisecond)

	res := o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	if res.Succeeded() || res.Fail.Kind != model.ErrTimeout {
		t.Fatalf("Expected Timeout, got %+v", res)
	}

	// The guard must be released after the timeout
	if !o.guard.TryAcquire(1) {
		t.Error("Expected guard released after timeout")
	}
	o.guard.Release(1)
}

func TestFetchAbortHook(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 10, ext: "mp4", blocked: make(chan struct{})}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	done := make(chan model.FetchResult, 1)
	go func() {
		done <- o.Fetch(context.Background(), 1, "https://vimeo.com/1", QualityBest, nil)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&ex.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("Fetch never reached the extractor")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	o.Abort(1)

	select {
	case res := <-done:
		if res.Succeeded() {
			t.Fatal("Expected aborted fetch to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Aborted fetch did not return")
	}
}

func TestFetchRecordsStats(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{dir: dir, size: 50, ext: "mp4"}
	tracker := stats.NewTracker()
	o := NewOrchestrator(
		ratelimit.NewGate(5, time.Minute), guard.NewGuard(),
		ex, &fakeTranscoder{}, tracker,
		testFileCeiling, testDownloadCeiling, time.Minute,
	)

	res := o.Fetch(context.Background(), 9, "https://youtube.com/watch?v=x", QualityBest, nil)
	if !res.Succeeded() {
		t.Fatalf("Expected success, got %v", res.Fail)
	}
	platform.RemoveFile(res.File.Path)

	o.Fetch(context.Background(), 9, "not-a-url", QualityBest, nil)

	s := tracker.Snapshot(9)
	if s.Downloads != 1 || s.Failures != 1 {
		t.Errorf("Expected 1 download and 1 failure, got %d/%d", s.Downloads, s.Failures)
	}
	if s.Sites["YouTube"] != 1 {
		t.Errorf("Expected YouTube site count 1, got %v", s.Sites)
	}
}

func TestThrottleProgress(t *testing.T) {
	var seen []int
	fn := throttleProgress(func(p int) { seen = append(seen, p) })

	for p := 0; p <= 100; p++ {
		fn(p)
	}

	expected := []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if len(seen) != len(expected) {
		t.Fatalf("Expected %d notifications, got %d: %v", len(expected), len(seen), seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("Notification %d: expected %d, got %d", i, expected[i], seen[i])
		}
	}

	// Regressions and repeats are dropped
	fn(50)
	fn(100)
	if len(seen) != len(expected) {
		t.Errorf("Expected no extra notifications, got %v", seen[len(expected):])
	}

	if throttleProgress(nil) != nil {
		t.Error("Expected nil observer to stay nil")
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://youtube.com/watch?v=abc",
		"http://example.org/file.mp4",
	}
	for _, u := range valid {
		if err := validateURL(u); err != nil {
			t.Errorf("Expected %q to be valid, got %v", u, err)
		}
	}

	invalid := []string{
		"",
		"youtube.com/watch",
		"ftp://example.org/x",
		"https://",
		"://bad",
	}
	for _, u := range invalid {
		if err := validateURL(u); err == nil {
			t.Errorf("Expected %q to be invalid", u)
		}
	}
}

func TestProbe(t *testing.T) {
	ex := &fakeExtractor{dir: t.TempDir(), size: 10, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	info, fail := o.Probe(context.Background(), 1, "https://youtube.com/watch?v=x")
	if fail != nil {
		t.Fatalf("Expected probe success, got %v", fail)
	}
	if info.Title != "Test Clip" || info.Uploader != "Tester" {
		t.Errorf("Expected probe metadata, got %+v", info)
	}
}

func TestProbeConsumesRateWindow(t *testing.T) {
	ex := &fakeExtractor{dir: t.TempDir(), size: 10, ext: "mp4"}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	for i := 0; i < 5; i++ {
		if _, fail := o.Probe(context.Background(), 1, "https://youtube.com/watch?v=x"); fail != nil {
			t.Fatalf("Probe %d unexpectedly failed: %v", i+1, fail)
		}
	}

	_, fail := o.Probe(context.Background(), 1, "https://youtube.com/watch?v=x")
	if fail == nil || fail.Kind != model.ErrRateLimited {
		t.Fatalf("Expected RateLimited on 6th probe, got %v", fail)
	}

	// the denied probe never reaches the engine
	if n := atomic.LoadInt32(&ex.probes); n != 5 {
		t.Errorf("Expected 5 engine probes, got %d", n)
	}

	// other users keep their own window
	if _, fail := o.Probe(context.Background(), 2, "https://youtube.com/watch?v=x"); fail != nil {
		t.Errorf("Expected another user's probe to succeed, got %v", fail)
	}
}

func TestProbeInvalidURL(t *testing.T) {
	o := newTestOrchestrator(&fakeExtractor{}, &fakeTranscoder{}, time.Minute)

	_, fail := o.Probe(context.Background(), 1, "not a url")
	if fail == nil || fail.Kind != model.ErrInvalidURL {
		t.Fatalf("Expected invalid URL failure, got %v", fail)
	}
}

func TestProbeEngineFailure(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("unsupported site")}
	o := newTestOrchestrator(ex, &fakeTranscoder{}, time.Minute)

	_, fail := o.Probe(context.Background(), 1, "https://example.com/v/1")
	if fail == nil || fail.Kind != model.ErrExtractionFailed {
		t.Fatalf("Expected extraction failure, got %v", fail)
	}
}
