package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vidfetch/vidfetch-bot/internal/fetch"
	"github.com/vidfetch/vidfetch-bot/internal/model"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
)

// Telegram caps captions at 1024 characters
const maxCaptionLength = 1024

const startText = `*Media Fetch Bot*

Send me a link and I'll fetch the media for you.

Supported sources include YouTube, Instagram, Twitter/X, TikTok, Facebook, Reddit, Vimeo, and many more.

*Commands:*
/start - show this message
/help - usage and limits
/stats - your usage statistics
/audio <link> - fetch audio only

Files above the upload limit are compressed automatically.`

const helpText = `*How to use*

1. Copy a video or file link
2. Send it here
3. Wait for the download to finish
4. Receive your file

*Limits:*
- Upload limit: %s (larger files are compressed)
- Download limit: %s
- Rate limit: %d requests per %s

Use /audio <link> to fetch only the audio track.`

const usageHint = "Send me a link to fetch, or /help for usage."

// failureText maps an error kind to the user-facing message. Internal
// detail never appears here; it is only logged.
func (a *Adapter) failureText(userID int64, kind model.ErrorKind) string {
	switch kind {
	case model.ErrInvalidURL:
		return "That doesn't look like a valid link. Send a full URL starting with http:// or https://."
	case model.ErrRateLimited:
		text := fmt.Sprintf("Rate limit exceeded. Limit: %d requests per %s.", a.rateLimit, formatWindow(a.rateWindow))
		if a.retryAfter != nil {
			if wait := a.retryAfter(userID); wait > 0 {
				text += fmt.Sprintf(" Try again in %s.", formatWindow(wait))
			}
		}
		return text
	case model.ErrAlreadyInProgress:
		return "You already have a download running. Please wait for it to finish."
	case model.ErrExtractionFailed:
		return "The link could not be downloaded. It may be unsupported, private, or too large."
	case model.ErrTooLarge:
		return fmt.Sprintf("The file is too large to send, even after compression. Maximum size is %s.", platform.FormatFileSize(a.maxFileSize))
	case model.ErrTranscodeFailed:
		return "Compressing the file failed. Try a different quality or source."
	case model.ErrDeliveryFailed:
		return "The file was downloaded but could not be uploaded. Please try again."
	case model.ErrTimeout:
		return "The download timed out. The file might be too large or the source too slow."
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}

// buildPrompt renders the quality-selection message shown after a probe
func buildPrompt(info *fetch.ProbeInfo) string {
	var b strings.Builder
	b.WriteString("Found it.")

	if info.Title != "" {
		b.WriteString("\n\n")
		title := truncate(info.Title, 100)
		if title != info.Title {
			title += "..."
		}
		b.WriteString(title)
	}
	if info.Uploader != "" {
		b.WriteString("\nby ")
		b.WriteString(info.Uploader)
	}
	if info.Duration > 0 {
		b.WriteString("\n")
		b.WriteString(formatDuration(info.Duration))
	}

	b.WriteString("\n\nPick a quality:")
	return b.String()
}

// buildCaption renders the caption attached to a delivered file
func buildCaption(file *model.FetchedFile) string {
	var b strings.Builder

	title := file.Title
	if title == "" {
		title = "Download complete"
	}
	b.WriteString(title)

	if file.Uploader != "" {
		b.WriteString("\nby ")
		b.WriteString(file.Uploader)
	}

	b.WriteString("\n")
	b.WriteString(platform.FormatFileSize(file.Size))
	if file.Duration > 0 {
		b.WriteString(" | ")
		b.WriteString(formatDuration(file.Duration))
	}
	if file.Site != "" && file.Site != platform.UnknownSite {
		b.WriteString(" | ")
		b.WriteString(file.Site)
	}

	return truncate(b.String(), maxCaptionLength)
}

// truncate cuts a string to max runes. Cutting on runes rather than bytes
// keeps the result valid UTF-8; Telegram rejects messages that are not.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// formatStats renders the /stats reply for one user
func formatStats(s model.UserStats) string {
	var b strings.Builder
	b.WriteString("*Your statistics*\n\n")
	fmt.Fprintf(&b, "Downloads: %d\n", s.Downloads)
	fmt.Fprintf(&b, "Failed attempts: %d\n", s.Failures)
	fmt.Fprintf(&b, "Total size: %s\n", platform.FormatFileSize(s.Bytes))
	fmt.Fprintf(&b, "First use: %s\n", s.FirstUse.Format("2006-01-02"))
	fmt.Fprintf(&b, "Last use: %s\n", s.LastUse.Format("2006-01-02 15:04"))

	if len(s.Sites) > 0 {
		names := make([]string, 0, len(s.Sites))
		for name := range s.Sites {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "Sites: %s\n", strings.Join(names, ", "))
	}

	return b.String()
}

// formatDuration renders hh:mm:ss, dropping the hour part when zero
func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatWindow renders a duration compactly for limit messages ("60s", "5m")
func formatWindow(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
