package bot

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
)

// Adapter maps fetch results to outbound chat messages. It owns the tail of
// the temp file's life: whatever happens during delivery, the file is gone
// afterward.
type Adapter struct {
	transport   Transport
	maxFileSize int64
	rateLimit   int
	rateWindow  time.Duration
	retryAfter  func(userID int64) time.Duration // optional, enriches the rate-limit text
}

// NewAdapter creates a delivery adapter. The size and rate settings are only
// used to phrase failure messages.
func NewAdapter(transport Transport, maxFileSize int64, rateLimit int, rateWindow time.Duration, retryAfter func(int64) time.Duration) *Adapter {
	return &Adapter{
		transport:   transport,
		maxFileSize: maxFileSize,
		rateLimit:   rateLimit,
		rateWindow:  rateWindow,
		retryAfter:  retryAfter,
	}
}

// Deliver sends the fetch outcome to the chat: the file on success, a plain
// explanation on failure. Transport errors are absorbed here; exactly one
// message reaches the user either way, and the temp file is always removed.
func (a *Adapter) Deliver(chatID, userID int64, res model.FetchResult) {
	if !res.Succeeded() {
		a.sendText(chatID, a.failureText(userID, res.Fail.Kind))
		return
	}

	file := res.File
	defer platform.RemoveFile(file.Path)

	if err := a.transport.SendFile(chatID, file, buildCaption(file)); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Str("path", file.Path).Msg("file upload failed")
		a.sendText(chatID, a.failureText(userID, model.ErrDeliveryFailed))
		return
	}

	log.Debug().Int64("chat", chatID).Str("kind", file.Kind.String()).Int64("bytes", file.Size).Msg("file delivered")
}

// sendText is a best-effort text send; a failing transport is logged only
func (a *Adapter) sendText(chatID int64, text string) {
	if _, err := a.transport.SendText(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("text send failed")
	}
}
