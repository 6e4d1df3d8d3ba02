package model

import (
	"path/filepath"
	"strings"
)

// MediaKind selects the outbound message type for a fetched file
type MediaKind string

const (
	// MediaVideo is sent as a streaming video message
	MediaVideo MediaKind = "video"

	// MediaAudio is sent as an audio message
	MediaAudio MediaKind = "audio"

	// MediaDocument is the fallback for anything else
	MediaDocument MediaKind = "document"
)

// String returns the string representation of MediaKind
func (mk MediaKind) String() string {
	return string(mk)
}

var (
	videoExtensions = []string{".mp4", ".avi", ".mkv", ".mov", ".webm"}
	audioExtensions = []string{".mp3", ".m4a", ".wav", ".ogg", ".opus", ".flac"}
)

// KindForFile classifies a file by its extension
func KindForFile(path string) MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range videoExtensions {
		if ext == v {
			return MediaVideo
		}
	}
	for _, a := range audioExtensions {
		if ext == a {
			return MediaAudio
		}
	}
	return MediaDocument
}
