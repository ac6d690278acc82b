package telegram

import (
	"context"
	"fmt"
	"os"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
)

// Run connects to Telegram, logs in when the session file has no valid
// authorization, and calls fn with a Source for channel. The connection
// closes when fn returns.
func Run(ctx context.Context, cfg config.TelegramConfig, channel string, logger *zerolog.Logger, fn func(ctx context.Context, src *Source) error) error {
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: cfg.SessionPath,
		},
	})

	flow := newAuthenticator(cfg.Phone, cfg.Password2FA, os.Stdin, os.Stdout, logger).flow()

	err := client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("telegram auth: %w", err)
		}

		logger.Info().Msg("Successfully authenticated as user")

		src := NewSource(tg.NewClient(client), channel, logger,
			WithPageSize(cfg.PageSize),
			WithRateLimit(cfg.RateLimit),
		)

		return fn(ctx, src)
	})
	if err != nil {
		return fmt.Errorf("telegram session: %w", err)
	}

	return nil
}
