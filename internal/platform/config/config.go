package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
)

// Backend names.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	StoreSheets   = "sheets"
	StorePostgres = "postgres"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`

	Telegram TelegramConfig
	LLM      LLMConfig
	Store    StoreConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
	Notify   NotifyConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimPrefix(strings.TrimSpace(c.Telegram.Channel), "@") == "" {
		return fmt.Errorf("%w: TG_CHANNEL is required", errors.ErrInvalidConfig)
	}

	switch c.LLM.Provider {
	case ProviderGoogle:
		if c.LLM.GoogleAPIKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY is required for provider %q", errors.ErrInvalidConfig, c.LLM.Provider)
		}
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: LLM_API_KEY is required for provider %q", errors.ErrInvalidConfig, c.LLM.Provider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("%w: LLM_PROVIDER %q", errors.ErrUnknownBackend, c.LLM.Provider)
	}

	switch c.Store.Backend {
	case StoreSheets:
		if c.Store.SheetID == "" || c.Store.ServiceAccountFile == "" {
			return fmt.Errorf("%w: SHEET_ID and SERVICE_ACCOUNT_FILE are required for sheets", errors.ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: POSTGRES_DSN is required for postgres", errors.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: STORE_BACKEND %q", errors.ErrUnknownBackend, c.Store.Backend)
	}

	if c.Pipeline.ParseBatchSize < 1 || c.Store.AppendBatchSize < 1 {
		return fmt.Errorf("%w: batch sizes must be positive", errors.ErrInvalidConfig)
	}

	if c.LLM.MaxAttempts < 1 || c.Store.MaxAttempts < 1 {
		return fmt.Errorf("%w: attempt limits must be positive", errors.ErrInvalidConfig)
	}

	if (c.Notify.BotToken == "") != (c.Notify.ChatID == 0) {
		return fmt.Errorf("%w: NOTIFY_BOT_TOKEN and NOTIFY_CHAT_ID must be set together", errors.ErrInvalidConfig)
	}

	return nil
}

// ChannelUsername returns the configured channel without a leading "@".
func (c *Config) ChannelUsername() string {
	return strings.TrimPrefix(strings.TrimSpace(c.Telegram.Channel), "@")
}

// TableKey is the document the worksheet lives in: the spreadsheet id for
// Sheets, a fixed namespace for Postgres.
func (c *Config) TableKey() string {
	if c.Store.Backend == StorePostgres {
		return StorePostgres
	}

	return c.Store.SheetID
}

// applyAliases accepts the variable names used by the earlier script-based deployment.
func applyAliases(cfg *Config) {
	if !hasEnv("TG_CHANNEL") {
		setStringFromEnv("CHANNEL_USERNAME", &cfg.Telegram.Channel)
	}

	if !hasEnv("TG_SESSION_PATH") {
		setStringFromEnv("SESSION_NAME", &cfg.Telegram.SessionPath)
	}

	if !hasEnv("GOOGLE_API_KEY") {
		setStringFromEnv("GEMINI_API_KEY", &cfg.LLM.GoogleAPIKey)
	}

	if !hasEnv("GEMINI_MODEL") {
		setStringFromEnv("GEMINI_MODEL_NAME", &cfg.LLM.GeminiModel)
	}

	if !hasEnv("SHEETS_BACKOFF_BASE") {
		setSecondsFromEnv("SHEETS_BACKOFF_BASE_SECONDS", &cfg.Store.BackoffBase)
	}

	if !hasEnv("PARSE_BATCH_SIZE") {
		setIntFromEnv("LLM_BATCH_SIZE", &cfg.Pipeline.ParseBatchSize)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setSecondsFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil || parsed <= 0 {
		return
	}

	*target = time.Duration(parsed * float64(time.Second))
}
