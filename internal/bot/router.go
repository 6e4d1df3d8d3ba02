// Package bot holds the chat-facing layer: the command router that turns
// inbound updates into pipeline calls, the delivery adapter that turns
// results into messages, and the Telegram transport behind both.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vidfetch/vidfetch-bot/internal/fetch"
	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
	"github.com/vidfetch/vidfetch-bot/internal/stats"
)

// editInterval throttles progress edits so a chatty download can't exceed
// Telegram's per-chat message budget
const editInterval = 2 // seconds between progress edits

// callbackPrefix marks quality-selection button data. The full format is
// quality_<userID>_<preset>; the embedded user ID pins a prompt to the user
// who sent the URL.
const callbackPrefix = "quality_"

// Router dispatches inbound chat events: commands, URLs, button taps, and
// noise
type Router struct {
	transport Transport
	fetcher   Fetcher
	tracker   *stats.Tracker
	adapter   *Adapter
	pending   *pendingStore

	maxFileSize     int64
	maxDownloadSize int64
}

// NewRouter wires the command router
func NewRouter(transport Transport, fetcher Fetcher, tracker *stats.Tracker, adapter *Adapter, maxFileSize, maxDownloadSize int64) *Router {
	return &Router{
		transport:       transport,
		fetcher:         fetcher,
		tracker:         tracker,
		adapter:         adapter,
		pending:         newPendingStore(),
		maxFileSize:     maxFileSize,
		maxDownloadSize: maxDownloadSize,
	}
}

// Run consumes updates until the context is canceled. Each update is handled
// on its own goroutine so a long download never blocks other users.
func (r *Router) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go r.safeHandle(ctx, update)
		}
	}
}

// safeHandle isolates one update: a panic is logged and converted to a
// generic failure message instead of taking the process down.
func (r *Router) safeHandle(ctx context.Context, update tgbotapi.Update) {
	var userID, chatID int64
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		userID = update.CallbackQuery.From.ID
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
		chatID = update.Message.Chat.ID
	default:
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int64("user", userID).Msg("recovered from handler panic")
			if chatID != 0 {
				r.reply(chatID, "Something went wrong while processing your request. Please try again.")
			}
		}
	}()

	if update.CallbackQuery != nil {
		r.handleCallback(ctx, update.CallbackQuery)
		return
	}
	r.handleMessage(ctx, update.Message)
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		r.handleCommand(ctx, msg)
		return
	}

	if url := firstURL(msg.Text); url != "" {
		r.handleURL(ctx, msg.Chat.ID, msg.From.ID, url)
		return
	}

	r.reply(msg.Chat.ID, usageHint)
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		log.Info().Int64("user", msg.From.ID).Str("username", msg.From.UserName).Msg("user started the bot")
		r.reply(msg.Chat.ID, startText)
	case "help":
		r.reply(msg.Chat.ID, fmt.Sprintf(helpText,
			platform.FormatFileSize(r.maxFileSize),
			platform.FormatFileSize(r.maxDownloadSize),
			r.adapter.rateLimit,
			formatWindow(r.adapter.rateWindow),
		))
	case "stats":
		r.reply(msg.Chat.ID, formatStats(r.tracker.Snapshot(msg.From.ID)))
	case "audio":
		if url := firstURL(msg.CommandArguments()); url != "" {
			r.handleFetch(ctx, msg.Chat.ID, msg.From.ID, url, fetch.QualityAudio)
			return
		}
		r.reply(msg.Chat.ID, "Usage: /audio <link>")
	default:
		r.reply(msg.Chat.ID, usageHint)
	}
}

// handleURL probes the link and offers a quality choice. The probe is rate
// gated, so a user over their window is turned away before the engine runs.
func (r *Router) handleURL(ctx context.Context, chatID, userID int64, url string) {
	info, fail := r.fetcher.Probe(ctx, userID, url)
	if fail != nil {
		r.adapter.Deliver(chatID, userID, model.FetchResult{Fail: fail})
		return
	}

	promptID, err := r.transport.SendKeyboard(chatID, buildPrompt(info), qualityKeyboard(userID))
	if err != nil {
		// A chat that cannot take a keyboard still gets its download
		log.Warn().Err(err).Int64("chat", chatID).Msg("quality prompt failed, fetching best")
		r.handleFetch(ctx, chatID, userID, url, fetch.QualityBest)
		return
	}

	r.pending.Put(userID, pendingRequest{url: url, chatID: chatID, promptID: promptID})
}

// handleCallback resumes a pending request with the chosen quality. Foreign
// and stale taps get an answer notice and nothing else.
func (r *Router) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID

	ownerID, quality, ok := parseCallback(query.Data)
	if !ok || query.Message == nil {
		r.answer(query.ID, "Invalid selection.")
		return
	}
	if ownerID != userID {
		r.answer(query.ID, "This choice belongs to someone else's link.")
		return
	}

	req, ok := r.pending.Pop(userID)
	if !ok {
		r.answer(query.ID, "")
		chatID := query.Message.Chat.ID
		if err := r.transport.EditText(chatID, query.Message.MessageID, "This selection expired. Please send the link again."); err != nil {
			log.Debug().Err(err).Int64("chat", chatID).Msg("could not edit expired prompt")
		}
		return
	}

	r.answer(query.ID, "")
	if err := r.transport.DeleteMessage(req.chatID, req.promptID); err != nil {
		log.Debug().Err(err).Int64("chat", req.chatID).Msg("could not delete quality prompt")
	}

	r.handleFetch(ctx, req.chatID, userID, req.url, quality)
}

// handleFetch runs the pipeline for one URL, keeping the user informed via
// an edited status message, then hands the result to the delivery adapter.
func (r *Router) handleFetch(ctx context.Context, chatID, userID int64, url string, quality fetch.Quality) {
	statusID, err := r.transport.SendText(chatID, "Processing your link...")
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("could not send status message")
	}

	res := r.fetcher.Fetch(ctx, userID, url, quality, r.progressEditor(chatID, statusID))

	if statusID != 0 {
		if err := r.transport.DeleteMessage(chatID, statusID); err != nil {
			log.Debug().Err(err).Int64("chat", chatID).Msg("could not delete status message")
		}
	}

	r.adapter.Deliver(chatID, userID, res)
}

// progressEditor returns a progress observer that edits the status message.
// Edits are rate limited and skipped outright when the budget is exhausted,
// so the observer never blocks or floods the transport.
func (r *Router) progressEditor(chatID int64, statusID int) fetch.ProgressFunc {
	if statusID == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(1.0/editInterval), 1)
	return func(percent int) {
		if percent < 100 && !limiter.Allow() {
			return
		}
		// Edit off the download's callback path; the observer must not block
		go func() {
			text := fmt.Sprintf("Downloading... %d%%", percent)
			if err := r.transport.EditText(chatID, statusID, text); err != nil {
				log.Debug().Err(err).Int64("chat", chatID).Msg("progress edit failed")
			}
		}()
	}
}

// qualityKeyboard builds the per-user quality choices. The user ID rides in
// the callback data so another chat member cannot answer the prompt.
func qualityKeyboard(userID int64) [][]Button {
	data := func(quality fetch.Quality) string {
		return fmt.Sprintf("%s%d_%s", callbackPrefix, userID, quality)
	}
	return [][]Button{
		{{Label: "Best Quality", Data: data(fetch.QualityBest)}},
		{{Label: "720p", Data: data(fetch.QualityMedium)}},
		{{Label: "Audio Only", Data: data(fetch.QualityAudio)}},
	}
}

// parseCallback splits quality_<userID>_<preset> callback data
func parseCallback(data string) (userID int64, quality fetch.Quality, ok bool) {
	rest, found := strings.CutPrefix(data, callbackPrefix)
	if !found {
		return 0, "", false
	}
	idStr, preset, found := strings.Cut(rest, "_")
	if !found {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}

	switch fetch.Quality(preset) {
	case fetch.QualityBest, fetch.QualityMedium, fetch.QualityAudio:
		return id, fetch.Quality(preset), true
	default:
		return 0, "", false
	}
}

// answer is a best-effort callback acknowledgment
func (r *Router) answer(callbackID, text string) {
	if err := r.transport.AnswerCallback(callbackID, text); err != nil {
		log.Debug().Err(err).Msg("callback answer failed")
	}
}

// reply is a best-effort text send
func (r *Router) reply(chatID int64, text string) {
	if _, err := r.transport.SendText(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("reply failed")
	}
}

// firstURL returns the first http(s) token in a message, or ""
func firstURL(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

// ensure the concrete pipeline satisfies the router's dependency
var _ Fetcher = (*fetch.Orchestrator)(nil)
