package fetch

import (
	"context"
	"time"
)

// Quality selects the extraction engine's format preference
type Quality string

const (
	QualityBest   Quality = "best"
	QualityMedium Quality = "medium"
	QualityAudio  Quality = "audio"
)

// ProgressFunc receives coarse download progress in whole percent.
// Implementations must return quickly and must never block the download.
type ProgressFunc func(percent int)

// Extraction is the product of a successful engine run
type Extraction struct {
	Path     string
	Title    string
	Uploader string
	Duration time.Duration
}

// ProbeInfo is the metadata-only view of a URL, gathered without
// downloading anything
type ProbeInfo struct {
	Title    string
	Uploader string
	Duration time.Duration
}

// Extractor is the external media-extraction engine. Extract must honor the
// byte ceiling and the context deadline, remove its own partial files on
// failure, and return a typed error otherwise. Probe inspects a URL without
// downloading it.
type Extractor interface {
	Extract(ctx context.Context, url string, quality Quality, maxBytes int64, onProgress ProgressFunc) (*Extraction, error)
	Probe(ctx context.Context, url string) (*ProbeInfo, error)
}

// Transcoder is the external compression engine. Compress returns the path
// of a strictly smaller output file and leaves the input in place.
type Transcoder interface {
	Compress(ctx context.Context, inputPath string) (string, error)
}
