package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
)

// Test environment variable keys.
const (
	testEnvTGAPIID        = "TG_API_ID"
	testEnvTGAPIHash      = "TG_API_HASH"
	testEnvChannel        = "TG_CHANNEL"
	testEnvGoogleAPIKey   = "GOOGLE_API_KEY"
	testEnvSheetID        = "SHEET_ID"
	testEnvServiceAccount = "SERVICE_ACCOUNT_FILE"
	testEnvStoreBackend   = "STORE_BACKEND"
)

// Test values.
const (
	testTGAPIID   = "12345"
	testTGAPIHash = "abcdef123456"
	testChannel   = "@crypto_fundraising"
	testSheetID   = "sheet-1"
	testErrLoad   = "Load() error = %v"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvTGAPIID, testTGAPIID)
	t.Setenv(testEnvTGAPIHash, testTGAPIHash)
	t.Setenv(testEnvChannel, testChannel)
	t.Setenv(testEnvGoogleAPIKey, "key")
	t.Setenv(testEnvSheetID, testSheetID)
	t.Setenv(testEnvServiceAccount, "/tmp/sa.json")
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvTGAPIID)
	os.Unsetenv(testEnvTGAPIHash)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, testTGAPIHash, cfg.Telegram.APIHash)
	assert.Equal(t, "crypto_fundraising", cfg.ChannelUsername())
	assert.Equal(t, testSheetID, cfg.TableKey())
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	for _, key := range []string{
		"APP_ENV", "LLM_PROVIDER", "GEMINI_RPM_LIMIT", "GEMINI_MAX_ATTEMPTS", "PARSE_BATCH_SIZE",
		"SHEETS_BATCH_APPEND_SIZE", "SHEETS_BACKOFF_BASE", "SHEETS_MAX_ATTEMPTS", "APPEND_COOLDOWN",
		"MESSAGE_HARD_CAP", "STATE_DB_PATH", "WORKSHEET_NAME",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.AppEnv)
	assert.Equal(t, ProviderGoogle, cfg.LLM.Provider)
	assert.Equal(t, 12, cfg.LLM.RPMLimit)
	assert.Equal(t, 6, cfg.LLM.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.LLM.BackoffBase)
	assert.Equal(t, 120*time.Second, cfg.LLM.BackoffCap)
	assert.Equal(t, 10, cfg.Pipeline.ParseBatchSize)
	assert.Equal(t, 0, cfg.Pipeline.MessageHardCap)
	assert.Equal(t, 20, cfg.Store.AppendBatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Store.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Store.BackoffCap)
	assert.Equal(t, 5, cfg.Store.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Store.AppendCooldown)
	assert.Equal(t, "Telegram_Fundraising", cfg.Store.WorksheetName)
	assert.Empty(t, cfg.Store.StateDBPath)
}

func TestLoad_Aliases(t *testing.T) {
	setRequiredEnvVars(t)
	os.Unsetenv(testEnvChannel)
	os.Unsetenv(testEnvGoogleAPIKey)
	os.Unsetenv("SHEETS_BACKOFF_BASE")
	t.Setenv("CHANNEL_USERNAME", "@other_channel")
	t.Setenv("GEMINI_API_KEY", "alias-key")
	t.Setenv("SHEETS_BACKOFF_BASE_SECONDS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "other_channel", cfg.ChannelUsername())
	assert.Equal(t, "alias-key", cfg.LLM.GoogleAPIKey)
	assert.Equal(t, 2500*time.Millisecond, cfg.Store.BackoffBase)
}

func TestLoad_MissingChannel(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvChannel, "@")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvStoreBackend, StorePostgres)
	os.Unsetenv("POSTGRES_DSN")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	t.Setenv("POSTGRES_DSN", "postgres://localhost/ledger")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.TableKey())
}

func TestLoad_UnknownProvider(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownBackend)
}

func TestLoad_InvalidNumeric(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvTGAPIID, "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("expected error for invalid TG_API_ID")
	}
}

func TestLoad_NotifyNeedsTokenAndChat(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("NOTIFY_BOT_TOKEN", "123:abc")
	os.Unsetenv("NOTIFY_CHAT_ID")

	_, err := Load()
	require.ErrorIs(t, err, errors.ErrInvalidConfig)

	t.Setenv("NOTIFY_CHAT_ID", "-100200")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Notify.Enabled())
	assert.Equal(t, int64(-100200), cfg.Notify.ChatID)
}
