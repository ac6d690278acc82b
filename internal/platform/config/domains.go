package config

import "time"

// TelegramConfig holds Telegram MTProto API settings and the source channel.
type TelegramConfig struct {
	APIID       int    `env:"TG_API_ID,required"`
	APIHash     string `env:"TG_API_HASH,required"`
	Phone       string `env:"TG_PHONE"`
	Password2FA string `env:"TG_2FA_PASSWORD"`
	SessionPath string `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	Channel     string `env:"TG_CHANNEL"`
	PageSize    int    `env:"TG_PAGE_SIZE" envDefault:"100"`
	RateLimit   int    `env:"RATE_LIMIT_RPS" envDefault:"1"`
}

// LLMConfig holds extraction service settings.
type LLMConfig struct {
	Provider     string `env:"LLM_PROVIDER" envDefault:"google"`
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// OpenAI-compatible backend
	APIKey  string `env:"LLM_API_KEY"`
	BaseURL string `env:"LLM_BASE_URL"`
	Model   string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	RPMLimit     int           `env:"GEMINI_RPM_LIMIT" envDefault:"12"`
	MaxAttempts  int           `env:"GEMINI_MAX_ATTEMPTS" envDefault:"6"`
	BackoffBase  time.Duration `env:"GEMINI_BACKOFF_BASE" envDefault:"15s"`
	BackoffCap   time.Duration `env:"GEMINI_BACKOFF_CAP" envDefault:"120s"`
	RequestLimit time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"90s"`
}

// StoreConfig holds destination table settings.
type StoreConfig struct {
	Backend            string `env:"STORE_BACKEND" envDefault:"sheets"`
	ServiceAccountFile string `env:"SERVICE_ACCOUNT_FILE"`
	SheetID            string `env:"SHEET_ID"`
	WorksheetName      string `env:"WORKSHEET_NAME" envDefault:"Telegram_Fundraising"`

	PostgresDSN       string        `env:"POSTGRES_DSN"`
	MaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"4"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	AppendBatchSize int           `env:"SHEETS_BATCH_APPEND_SIZE" envDefault:"20"`
	BackoffBase     time.Duration `env:"SHEETS_BACKOFF_BASE" envDefault:"1.5s"`
	BackoffCap      time.Duration `env:"SHEETS_BACKOFF_CAP" envDefault:"30s"`
	MaxAttempts     int           `env:"SHEETS_MAX_ATTEMPTS" envDefault:"5"`
	AppendCooldown  time.Duration `env:"APPEND_COOLDOWN" envDefault:"2s"`

	StateDBPath string `env:"STATE_DB_PATH"`
}

// PipelineConfig holds orchestration knobs shared by both run modes.
type PipelineConfig struct {
	ParseBatchSize  int           `env:"PARSE_BATCH_SIZE" envDefault:"10"`
	MessageHardCap  int           `env:"MESSAGE_HARD_CAP" envDefault:"0"`
	CatchupInterval time.Duration `env:"CATCHUP_INTERVAL" envDefault:"15m"`
}

// LoggingConfig holds logging and observability settings.
type LoggingConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	File        string `env:"LOG_FILE" envDefault:"./ledger.log"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"0"`
}

// NotifyConfig holds the optional Telegram bot that receives run summaries.
type NotifyConfig struct {
	BotToken string `env:"NOTIFY_BOT_TOKEN"`
	ChatID   int64  `env:"NOTIFY_CHAT_ID"`
}

// Enabled reports whether run summaries should be sent.
func (c NotifyConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}
