// Package logging builds the process logger: stderr plus an append-only log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
)

const (
	appEnvLocal  = "local"
	logFileMode  = 0o644
	logFileFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
)

// New returns a logger tagged with the command name and a fresh run id, plus
// a closer for the log file. The closer is never nil.
func New(cfg *config.Config, command string) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{consoleWriter(cfg.AppEnv)}

	var closer io.Closer = nopCloser{}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, logFileFlags, logFileMode)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file %s: %w", cfg.Logging.File, err)
		}

		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("command", command).
		Str("run_id", uuid.NewString()).
		Logger()

	return logger, closer, nil
}

func consoleWriter(appEnv string) io.Writer {
	if appEnv == appEnvLocal {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return os.Stderr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
