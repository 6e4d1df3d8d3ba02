package bot

import (
	"context"
	"time"

	"github.com/vidfetch/vidfetch-bot/internal/fetch"
	"github.com/vidfetch/vidfetch-bot/internal/model"
)

// Button is one tappable choice attached to a message
type Button struct {
	Label string
	Data  string
}

// Transport is the outbound side of the chat layer. Implementations own the
// wire protocol; the router and delivery adapter only speak in these terms.
type Transport interface {
	// SendText delivers a text message and returns its message ID
	SendText(chatID int64, text string) (int, error)

	// SendKeyboard delivers a text message with tappable button rows
	SendKeyboard(chatID int64, text string, rows [][]Button) (int, error)

	// EditText replaces the text of a previously sent message
	EditText(chatID int64, messageID int, text string) error

	// DeleteMessage removes a previously sent message
	DeleteMessage(chatID int64, messageID int) error

	// AnswerCallback acknowledges a button tap, optionally with a notice
	AnswerCallback(callbackID, text string) error

	// SendFile uploads a fetched file using the message kind matching its media
	SendFile(chatID int64, file *model.FetchedFile, caption string) error
}

// Fetcher is the request pipeline as seen by the router
type Fetcher interface {
	Fetch(ctx context.Context, userID int64, rawURL string, quality fetch.Quality, onProgress fetch.ProgressFunc) model.FetchResult
	Probe(ctx context.Context, userID int64, rawURL string) (*fetch.ProbeInfo, *model.FetchError)
	RetryAfter(userID int64) time.Duration
}
