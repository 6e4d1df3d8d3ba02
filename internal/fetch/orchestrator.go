// Package fetch implements the concurrency-gated request pipeline: rate
// gate, single-flight guard, extraction with a byte ceiling and one unified
// deadline, optional transcoding down to the delivery ceiling, and stats
// accounting. Every exit path releases the guard and leaves no temp file
// behind except the one handed to the caller inside a successful result.
package fetch

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/guard"
	"github.com/vidfetch/vidfetch-bot/internal/metrics"
	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
	"github.com/vidfetch/vidfetch-bot/internal/ratelimit"
	"github.com/vidfetch/vidfetch-bot/internal/stats"
)

// progressStepPercent is the minimum progress delta forwarded to observers
const progressStepPercent = 10

// probeTimeout bounds the metadata-only inspection of a URL
const probeTimeout = 30 * time.Second

// Orchestrator coordinates a single fetch end to end
type Orchestrator struct {
	gate       *ratelimit.Gate
	guard      *guard.Guard
	extractor  Extractor
	transcoder Transcoder
	tracker    *stats.Tracker

	maxFileSize     int64
	maxDownloadSize int64
	timeout         time.Duration

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
}

// NewOrchestrator wires the pipeline. maxFileSize is the delivery ceiling,
// maxDownloadSize the extraction bound, timeout the single deadline that
// spans extraction and transcoding together.
func NewOrchestrator(
	gate *ratelimit.Gate,
	gd *guard.Guard,
	extractor Extractor,
	transcoder Transcoder,
	tracker *stats.Tracker,
	maxFileSize, maxDownloadSize int64,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		gate:            gate,
		guard:           gd,
		extractor:       extractor,
		transcoder:      transcoder,
		tracker:         tracker,
		maxFileSize:     maxFileSize,
		maxDownloadSize: maxDownloadSize,
		timeout:         timeout,
		cancels:         make(map[int64]context.CancelFunc),
	}
}

// RetryAfter reports how long the user must wait before the rate gate
// admits another request.
func (o *Orchestrator) RetryAfter(userID int64) time.Duration {
	return o.gate.RetryAfter(userID)
}

// Abort cancels the user's in-flight fetch, if any. Hook for a future
// user-facing cancel; the timeout path uses the same mechanism.
func (o *Orchestrator) Abort(userID int64) {
	o.mu.Lock()
	cancel := o.cancels[userID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Probe inspects a URL without downloading it: title, uploader, duration.
// A probe is still an engine invocation, so it counts against the user's
// rate window; only the guard is skipped, since no download slot is held
// while the user decides. Stats stay untouched.
func (o *Orchestrator) Probe(ctx context.Context, userID int64, rawURL string) (*ProbeInfo, *model.FetchError) {
	if err := validateURL(rawURL); err != nil {
		return nil, model.NewFetchError(model.ErrInvalidURL, rawURL, err)
	}

	if !o.gate.Allow(userID) {
		return nil, model.NewFetchError(model.ErrRateLimited, "sliding window exhausted", nil)
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := o.extractor.Probe(pctx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded) {
			return nil, model.NewFetchError(model.ErrTimeout, "probe deadline elapsed", err)
		}
		return nil, model.NewFetchError(model.ErrExtractionFailed, "probe failed", err)
	}
	return info, nil
}

// Fetch runs the full pipeline for one request. It never returns a success
// whose file exceeds the delivery ceiling, and it never panics across the
// boundary; failures come back as typed results. The returned file is owned
// by the caller and must be removed after delivery.
func (o *Orchestrator) Fetch(ctx context.Context, userID int64, rawURL string, quality Quality, onProgress ProgressFunc) model.FetchResult {
	if err := validateURL(rawURL); err != nil {
		return o.fail(userID, model.NewFetchError(model.ErrInvalidURL, rawURL, err))
	}

	if !o.gate.Allow(userID) {
		return o.fail(userID, model.NewFetchError(model.ErrRateLimited, "sliding window exhausted", nil))
	}

	if !o.guard.TryAcquire(userID) {
		return o.fail(userID, model.NewFetchError(model.ErrAlreadyInProgress, "download already in flight", nil))
	}

	fctx, cancel := context.WithTimeout(ctx, o.timeout)
	o.registerCancel(userID, cancel)
	metrics.IncActive()

	defer func() {
		metrics.DecActive()
		o.unregisterCancel(userID)
		cancel()
		o.guard.Release(userID)
	}()

	site := platform.SiteFromURL(rawURL)
	started := time.Now()
	log.Info().Int64("user", userID).Str("site", site).Str("quality", string(quality)).Msg("fetch started")

	extraction, err := o.extractor.Extract(fctx, rawURL, quality, o.maxDownloadSize, throttleProgress(onProgress))
	if err != nil {
		if extraction != nil {
			platform.RemoveFile(extraction.Path)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return o.fail(userID, model.NewFetchError(model.ErrTimeout, "operation deadline elapsed", err))
		}
		return o.fail(userID, model.NewFetchError(model.ErrExtractionFailed, "extraction engine error", err))
	}

	filePath := extraction.Path
	size := platform.FileSize(filePath)
	if size == 0 {
		platform.RemoveFile(filePath)
		return o.fail(userID, model.NewFetchError(model.ErrExtractionFailed, "engine reported success but produced no file", nil))
	}
	if size > o.maxDownloadSize {
		platform.RemoveFile(filePath)
		return o.fail(userID, model.NewFetchError(model.ErrExtractionFailed, "download ceiling exceeded", nil))
	}

	if size > o.maxFileSize {
		filePath, size, err = o.shrink(fctx, filePath)
		if err != nil {
			var fe *model.FetchError
			if errors.As(err, &fe) {
				return o.fail(userID, fe)
			}
			return o.fail(userID, model.NewFetchError(model.ErrTooLarge, "file exceeds delivery ceiling", err))
		}
	}

	file := &model.FetchedFile{
		Path:     filePath,
		Kind:     model.KindForFile(filePath),
		Size:     size,
		Title:    extraction.Title,
		Uploader: extraction.Uploader,
		Site:     site,
		Duration: extraction.Duration,
	}

	o.tracker.RecordSuccess(userID, site, size)
	metrics.RecordFetch("success")
	metrics.AddDownloadBytes(size)
	log.Info().
		Int64("user", userID).
		Str("site", site).
		Int64("bytes", size).
		Str("kind", file.Kind.String()).
		Dur("took", time.Since(started)).
		Msg("fetch completed")

	return model.FetchResult{File: file}
}

// shrink transcodes an oversize file down to the delivery ceiling. The input
// is always removed: replaced by the output on success, discarded on failure.
func (o *Orchestrator) shrink(ctx context.Context, inputPath string) (string, int64, error) {
	outputPath, err := o.transcoder.Compress(ctx, inputPath)
	platform.RemoveFile(inputPath)

	if err != nil {
		if outputPath != "" {
			platform.RemoveFile(outputPath)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", 0, model.NewFetchError(model.ErrTimeout, "transcode hit the operation deadline", err)
		}
		// An oversize file that cannot be brought under the ceiling is
		// reported as TooLarge, not as a transcoder fault.
		return "", 0, model.NewFetchError(model.ErrTooLarge, "transcode failed", err)
	}

	size := platform.FileSize(outputPath)
	if size == 0 {
		platform.RemoveFile(outputPath)
		return "", 0, model.NewFetchError(model.ErrTranscodeFailed, "transcoder produced no output", nil)
	}
	if size > o.maxFileSize {
		platform.RemoveFile(outputPath)
		return "", 0, model.NewFetchError(model.ErrTooLarge, "still above delivery ceiling after transcode", nil)
	}
	return outputPath, size, nil
}

// fail records a failed attempt and builds the failure result
func (o *Orchestrator) fail(userID int64, fe *model.FetchError) model.FetchResult {
	o.tracker.RecordFailure(userID)
	metrics.RecordFetch(fe.Kind.String())
	log.Warn().Int64("user", userID).Str("kind", fe.Kind.String()).Err(fe).Msg("fetch failed")
	return model.FetchResult{Fail: fe}
}

func (o *Orchestrator) registerCancel(userID int64, cancel context.CancelFunc) {
	o.mu.Lock()
	o.cancels[userID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) unregisterCancel(userID int64) {
	o.mu.Lock()
	delete(o.cancels, userID)
	o.mu.Unlock()
}

// validateURL accepts only absolute http(s) URLs with a host
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// throttleProgress forwards progress only when it advances by a full step,
// so message edits stay coarse and observers are never flooded.
func throttleProgress(onProgress ProgressFunc) ProgressFunc {
	if onProgress == nil {
		return nil
	}
	lastStep := -1
	return func(percent int) {
		if percent < 0 {
			return
		}
		if percent > 100 {
			percent = 100
		}
		step := percent / progressStepPercent
		if step <= lastStep {
			return
		}
		lastStep = step
		onProgress(step * progressStepPercent)
	}
}
