package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
)

// updateTimeout is the long-poll timeout in seconds
const updateTimeout = 30

// TelegramTransport implements Transport on the Bot API
type TelegramTransport struct {
	api *tgbotapi.BotAPI
}

var _ Transport = (*TelegramTransport)(nil)

// NewTelegramTransport connects to the Bot API with the given credential
func NewTelegramTransport(token string) (*TelegramTransport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot api: %w", err)
	}
	return &TelegramTransport{api: api}, nil
}

// Username returns the bot's own account name
func (t *TelegramTransport) Username() string {
	return t.api.Self.UserName
}

// Updates opens the long-polling update channel
func (t *TelegramTransport) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout
	return t.api.GetUpdatesChan(u)
}

// StopUpdates closes the long-polling loop
func (t *TelegramTransport) StopUpdates() {
	t.api.StopReceivingUpdates()
}

// SendText delivers a Markdown-formatted text message
func (t *TelegramTransport) SendText(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendKeyboard delivers a message with inline button rows. The text is sent
// plain; probe titles routinely break Markdown parsing.
func (t *TelegramTransport) SendKeyboard(chatID int64, text string, rows [][]Button) (int, error) {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// AnswerCallback acknowledges a button tap
func (t *TelegramTransport) AnswerCallback(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// EditText replaces a message's text in place
func (t *TelegramTransport) EditText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := t.api.Send(edit)
	return err
}

// DeleteMessage removes a message
func (t *TelegramTransport) DeleteMessage(chatID int64, messageID int) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// SendFile uploads the file as video, audio, or document according to its
// media kind. Captions are sent as plain text; titles routinely contain
// characters that break Markdown parsing.
func (t *TelegramTransport) SendFile(chatID int64, file *model.FetchedFile, caption string) error {
	filename := platform.SanitizeFilename(file.Title)

	switch file.Kind {
	case model.MediaVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(file.Path))
		video.Caption = caption
		video.SupportsStreaming = true
		_, err := t.api.Send(video)
		return err

	case model.MediaAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(file.Path))
		audio.Caption = caption
		audio.Title = filename
		audio.Performer = file.Uploader
		_, err := t.api.Send(audio)
		return err

	default:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(file.Path))
		doc.Caption = caption
		_, err := t.api.Send(doc)
		return err
	}
}
