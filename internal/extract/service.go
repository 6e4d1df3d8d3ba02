// Package extract wraps yt-dlp (via github.com/lrstanley/go-ytdlp) as the
// media-extraction engine. Format selection, site support, and network retry
// policy all belong to the engine; this package only configures it, bounds
// it, and cleans up after it.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/fetch"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
)

// Format selectors per quality preset
const (
	FormatBest   = "bv*+ba/b"
	FormatMedium = "bv*[height<=720]+ba/b[height<=720]"
	FormatAudio  = "ba/b"
)

// progressInterval bounds how often the engine reports progress
const progressInterval = 500 * time.Millisecond

// Service runs yt-dlp downloads into the temp directory
type Service struct {
	tempDir string
}

var _ fetch.Extractor = (*Service)(nil)

// NewService creates an extraction service writing into tempDir
func NewService(tempDir string) *Service {
	return &Service{tempDir: tempDir}
}

// Install ensures the yt-dlp binary is available, downloading it when
// missing. Called once at startup.
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("yt-dlp install: %w", err)
	}
	return nil
}

// Extract downloads the media behind url, honoring the byte ceiling and the
// context deadline. Partial files are removed on every failure path; on
// success the caller owns the returned file.
func (s *Service) Extract(ctx context.Context, url string, quality fetch.Quality, maxBytes int64, onProgress fetch.ProgressFunc) (*fetch.Extraction, error) {
	stem := platform.UniqueTempPath(s.tempDir, "")

	dl := ytdlp.New().
		NoPlaylist().
		RestrictFilenames().
		ForceOverwrites().
		MaxFileSize(fmt.Sprintf("%d", maxBytes)).
		Format(formatFor(quality)).
		Output(stem + ".%(ext)s")

	if onProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				onProgress(int(update.DownloadedBytes * 100 / update.TotalBytes))
			}
		})
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		removePartials(stem)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	extraction := &fetch.Extraction{Path: findOutput(stem, result)}
	if extraction.Path == "" {
		removePartials(stem)
		return nil, fmt.Errorf("yt-dlp finished but no output file found for %s", stem)
	}

	fillMetadata(extraction, result)
	return extraction, nil
}

// Probe runs the engine in metadata-only mode, downloading nothing
func (s *Service) Probe(ctx context.Context, url string) (*fetch.ProbeInfo, error) {
	result, err := ytdlp.New().
		NoPlaylist().
		SkipDownload().
		DumpJSON().
		Run(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("yt-dlp probe: %w", err)
	}

	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return nil, fmt.Errorf("probe returned no metadata: %w", err)
	}

	probe := &fetch.ProbeInfo{}
	first := info[0]
	if first.Title != nil {
		probe.Title = *first.Title
	}
	if first.Uploader != nil {
		probe.Uploader = *first.Uploader
	}
	if first.Duration != nil {
		probe.Duration = time.Duration(*first.Duration * float64(time.Second))
	}
	return probe, nil
}

// formatFor maps a quality preset to a yt-dlp format selector
func formatFor(quality fetch.Quality) string {
	switch quality {
	case fetch.QualityAudio:
		return FormatAudio
	case fetch.QualityMedium:
		return FormatMedium
	default:
		return FormatBest
	}
}

// findOutput locates the downloaded file, preferring the engine's own
// report and falling back to a stem glob (the extension is the engine's
// choice, not ours).
func findOutput(stem string, result *ytdlp.Result) string {
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 {
			if info[0].Filename != nil && fileExists(*info[0].Filename) {
				return *info[0].Filename
			}
		}
	}

	matches, err := filepath.Glob(stem + ".*")
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if !isPartial(m) && fileExists(m) {
			return m
		}
	}
	return ""
}

// fillMetadata copies title, uploader, and duration from the engine report
func fillMetadata(extraction *fetch.Extraction, result *ytdlp.Result) {
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return
	}
	first := info[0]
	if first.Title != nil {
		extraction.Title = *first.Title
	}
	if first.Uploader != nil {
		extraction.Uploader = *first.Uploader
	}
	if first.Duration != nil {
		extraction.Duration = time.Duration(*first.Duration * float64(time.Second))
	}
}

// removePartials deletes anything the engine left behind for a stem,
// including .part and .ytdl working files.
func removePartials(stem string) {
	matches, err := filepath.Glob(stem + "*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", m).Msg("failed to remove partial download")
		}
	}
}

func isPartial(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".part" || ext == ".ytdl"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
