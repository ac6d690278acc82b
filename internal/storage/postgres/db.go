// Package postgres stores ledger tables in PostgreSQL.
//
// Each ledger table is a row in ledger_tables holding the header, plus its
// data rows in ledger_rows kept in insertion order. The schema is managed
// with goose migrations embedded from the migrations package.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
	"github.com/lueurxax/fundraising-ledger/migrations"
)

const (
	// migrationLockID serialises concurrent Migrate calls across processes.
	migrationLockID = 7401

	// versionTable keeps ledger migrations apart from other goose users of
	// the same database.
	versionTable = "ledger_schema_version"
)

// connectPolicy spaces initial connection attempts while the server starts.
var connectPolicy = backoff.Policy{Base: time.Second, Cap: 15 * time.Second, MaxAttempts: 8}

// Database pool default constants
const (
	defaultMaxConns          int32         = 4
	defaultMinConns          int32         = 1
	defaultMaxConnIdleTime   time.Duration = 5 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	Logger *zerolog.Logger
}

// PoolOptions configures the database connection pool.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolOptions returns the pool configuration for a single pipeline run.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          defaultMaxConns,
		MinConns:          defaultMinConns,
		MaxConnIdleTime:   defaultMaxConnIdleTime,
		MaxConnLifetime:   defaultMaxConnLifetime,
		HealthCheckPeriod: defaultHealthCheckPeriod,
	}
}

// New connects to dsn. Zero-valued options keep pgx defaults.
func New(ctx context.Context, dsn string, opts PoolOptions, logger *zerolog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	applyPoolOptions(config, opts)

	return connectWithRetries(ctx, config, logger)
}

// applyPoolOptions applies non-zero pool options to the config.
func applyPoolOptions(config *pgxpool.Config, opts PoolOptions) {
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}

	if opts.MinConns > 0 {
		config.MinConns = min(opts.MinConns, config.MaxConns)
	}

	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}

	if opts.HealthCheckPeriod > 0 {
		config.HealthCheckPeriod = opts.HealthCheckPeriod
	}
}

// connectWithRetries opens the pool and pings it, backing off between tries.
func connectWithRetries(ctx context.Context, config *pgxpool.Config, logger *zerolog.Logger) (*DB, error) {
	var pool *pgxpool.Pool

	retrier := backoff.Retrier{
		Policy: connectPolicy,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).
				Str("host", config.ConnConfig.Host).Msg("Database not reachable, retrying")
		},
	}

	err := retrier.Do(ctx, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return err
		}

		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}

		pool = p

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", config.ConnConfig.Host, err)
	}

	return &DB{Pool: pool, Logger: logger}, nil
}

// Ping checks the pool; it serves the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.Pool.Close()
}

type gooseLogger struct {
	logger *zerolog.Logger
}

// Fatalf is reported as an error; the failing UpContext call returns it too.
func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

// Migrate brings the ledger schema up to date and logs the resulting version.
// Concurrent runs wait on an advisory lock instead of migrating twice.
func (db *DB) Migrate(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	defer func() {
		//nolint:errcheck // advisory unlock in defer is best-effort, lock released on connection close anyway
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*db.Pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(versionTable)
	goose.SetLogger(&gooseLogger{logger: db.Logger})

	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, dbSQL, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, dbSQL)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	db.Logger.Info().Int64("version", version).Msg("Ledger schema ready")

	return nil
}
