// Package compress wraps ffmpeg as the transcoding engine: a single-pass
// re-encode that trades quality for size so oversize downloads can fit the
// delivery ceiling. ffmpeg and ffprobe are external collaborators invoked
// per call; nothing is retried here.
package compress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/fetch"
)

// FFmpeg settings for size reduction: 720p cap, constrained-quality H.264
const (
	VideoCodec   = "libx264"
	VideoPreset  = "fast"
	VideoCRF     = "28"
	VideoScale   = "scale=-2:720"
	AudioCodec   = "aac"
	AudioBitrate = "128k"

	FastStartFlag = "+faststart"

	CompressedSuffix   = "-compressed"
	OutputExtensionMP4 = ".mp4"

	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
)

// Service runs ffmpeg transcodes
type Service struct{}

var _ fetch.Transcoder = (*Service)(nil)

// NewService creates a transcoding service
func NewService() *Service {
	return &Service{}
}

// Available reports whether the ffmpeg binary can be found. Transcoding is
// optional at runtime; callers may log a warning and continue without it.
func Available() bool {
	_, err := exec.LookPath(FFmpegCommand)
	return err == nil
}

// Compress re-encodes inputPath into a new, strictly smaller file and
// returns its path. The input file is left in place. On any failure,
// including context cancellation, the partial output is removed.
func (s *Service) Compress(ctx context.Context, inputPath string) (string, error) {
	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}

	outputPath := generateOutputPath(inputPath)

	// Duration is only needed for progress logging; a probe failure is not fatal
	duration, err := getVideoDuration(ctx, inputPath)
	if err != nil {
		log.Debug().Err(err).Str("path", inputPath).Msg("ffprobe duration unavailable")
	}

	cmd := exec.CommandContext(ctx, FFmpegCommand, buildFFmpegArgs(inputPath, outputPath)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	go monitorProgress(stderr, inputPath, duration)

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("ffmpeg: %w", err)
	}

	outputInfo, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("ffmpeg finished but output missing: %w", err)
	}

	if outputInfo.Size() >= inputInfo.Size() {
		os.Remove(outputPath)
		return "", fmt.Errorf("transcode did not reduce size (%d -> %d bytes)", inputInfo.Size(), outputInfo.Size())
	}

	log.Info().
		Str("input", inputPath).
		Int64("before", inputInfo.Size()).
		Int64("after", outputInfo.Size()).
		Msg("transcode finished")

	return outputPath, nil
}

// buildFFmpegArgs builds the ffmpeg command arguments
func buildFFmpegArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-vf", VideoScale,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-movflags", FastStartFlag,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	}
}

// getVideoDuration gets the duration of a video file in seconds using ffprobe
func getVideoDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, FFprobeCommand,
		"-v", FFprobeLogLevel,
		"-show_entries", FFprobeShowEntries,
		"-of", FFprobeOutputFormat,
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// monitorProgress reads ffmpeg's -progress output and logs advancement at
// coarse steps. Purely observational; parse errors are ignored.
func monitorProgress(stderr io.ReadCloser, inputPath string, totalDuration float64) {
	defer stderr.Close()

	lastDecile := -1
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ProgressTimePrefix) {
			continue
		}

		micros, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
		if err != nil || totalDuration <= 0 {
			continue
		}

		percent := int(float64(micros) / 1e6 / totalDuration * 100)
		if percent > 100 {
			percent = 100
		}
		if decile := percent / 10; decile > lastDecile {
			lastDecile = decile
			log.Debug().Str("input", inputPath).Int("percent", decile*10).Msg("transcode progress")
		}
	}
}

// generateOutputPath generates the output path for the compressed file
func generateOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + CompressedSuffix + OutputExtensionMP4
}
