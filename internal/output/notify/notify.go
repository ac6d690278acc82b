// Package notify posts run summaries to a Telegram chat through the Bot API.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/process/pipeline"
)

// DefaultEndpoint is the Bot API URL template: token, then method.
const DefaultEndpoint = tgbotapi.APIEndpoint

// Notifier receives the outcome of each run.
type Notifier interface {
	RunFinished(ctx context.Context, report pipeline.Report, runErr error)
}

// Nop discards every summary.
type Nop struct{}

// RunFinished implements Notifier.
func (Nop) RunFinished(context.Context, pipeline.Report, error) {}

// Bot sends summaries as HTML messages to one chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	quiet  bool
	logger *zerolog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// Quiet suppresses summaries of successful runs that appended nothing.
func Quiet() Option {
	return func(b *Bot) { b.quiet = true }
}

// NewBot connects to the Bot API at endpoint (DefaultEndpoint in production).
func NewBot(token, endpoint string, chatID int64, logger *zerolog.Logger, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting notify bot: %w", err)
	}

	b := &Bot{api: api, chatID: chatID, logger: logger}
	for _, opt := range opts {
		opt(b)
	}

	logger.Info().Str("bot", api.Self.UserName).Int64("chat_id", chatID).Msg("Run summaries enabled")

	return b, nil
}

// RunFinished sends the summary. Delivery failures are logged, never returned:
// a run is not failed by its notification.
func (b *Bot) RunFinished(ctx context.Context, report pipeline.Report, runErr error) {
	if runErr == nil && b.quiet && report.Appended == 0 {
		return
	}

	if ctx.Err() != nil && runErr == nil {
		return
	}

	msg := tgbotapi.NewMessage(b.chatID, Render(report, runErr))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn().Err(err).Msg("failed to send run summary")
	}
}

// Render formats a report as Bot API HTML.
func Render(report pipeline.Report, runErr error) string {
	var sb strings.Builder

	status := "✅"
	if runErr != nil {
		status = "❌"
	}

	fmt.Fprintf(&sb, "%s <b>%s</b>: appended %d new rows\n", status, escape(report.Mode), report.Appended)
	fmt.Fprintf(&sb, "seen %d · candidates %d · duplicates %d · empty %d\n",
		report.Seen, report.Candidates, report.Duplicates, report.Empty)

	if report.Dropped > 0 || report.Failed > 0 {
		fmt.Fprintf(&sb, "dropped %d · failed %d\n", report.Dropped, report.Failed)
	}

	if report.DedupDegraded {
		sb.WriteString("⚠️ existing ids could not be read\n")
	}

	if report.CursorSaved {
		fmt.Fprintf(&sb, "cursor %d\n", report.Cursor)
	}

	fmt.Fprintf(&sb, "took %s", report.Duration.Round(time.Second))

	if runErr != nil {
		fmt.Fprintf(&sb, "\n<code>%s</code>", escape(runErr.Error()))
	}

	return sb.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
