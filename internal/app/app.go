// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires configuration into the message source, extraction
// client, table store and scan-cursor state, and exposes the run modes:
//
//   - Catch-up: append messages newer than the table's highest id
//   - Watch: catch-up repeated on an interval until interrupted
//   - Status: compare the channel head with the table, read-only
//   - Backfill: re-scan a calendar date range in batches
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/llm"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
	"github.com/lueurxax/fundraising-ledger/internal/ingest/telegram"
	"github.com/lueurxax/fundraising-ledger/internal/output/notify"
	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
	"github.com/lueurxax/fundraising-ledger/internal/platform/ratelimit"
	"github.com/lueurxax/fundraising-ledger/internal/platform/worker"
	"github.com/lueurxax/fundraising-ledger/internal/process/pipeline"
	"github.com/lueurxax/fundraising-ledger/internal/storage/postgres"
	"github.com/lueurxax/fundraising-ledger/internal/storage/sheets"
	"github.com/lueurxax/fundraising-ledger/internal/storage/state"
)

const watchWorkerName = "catchup"

// Deps replaces backends that would otherwise be built from configuration.
// Nil fields are built from configuration.
type Deps struct {
	Source    ports.MessageSource
	Tables    ports.TableStore
	Cursors   ports.CursorStore
	Generator llm.Generator
	Notifier  notify.Notifier

	// Sleep replaces backoff, cooldown and watch timers.
	Sleep func(ctx context.Context, d time.Duration) error
}

// App holds the configuration and provides methods to run the modes.
type App struct {
	cfg    *config.Config
	deps   Deps
	logger *zerolog.Logger
}

// New creates an App that builds every backend from cfg.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	return NewWithDeps(cfg, Deps{}, logger)
}

// NewWithDeps creates an App with some backends supplied by the caller.
func NewWithDeps(cfg *config.Config, deps Deps, logger *zerolog.Logger) *App {
	return &App{cfg: cfg, deps: deps, logger: logger}
}

// RunCatchup appends every message newer than the table's watermark.
func (a *App) RunCatchup(ctx context.Context) (pipeline.Report, error) {
	var report pipeline.Report

	err := a.withRuntime(ctx, true, func(ctx context.Context, rt *runtime) error {
		var err error

		report, err = rt.driver.Run(ctx, pipeline.WatermarkSelector{}, pipeline.Single{Extractor: rt.extractor})
		rt.finished(ctx, a.newNotifier(), report, err)

		return err
	})

	return report, err
}

// WatchCatchup runs catch-up every CATCHUP_INTERVAL until ctx is canceled.
// A failed pass is logged and the next pass still runs.
func (a *App) WatchCatchup(ctx context.Context, onReport func(pipeline.Report)) error {
	return a.withRuntime(ctx, true, func(ctx context.Context, rt *runtime) error {
		notifier := a.newNotifier(notify.Quiet())

		return worker.Loop(ctx, worker.Config{
			Name:     watchWorkerName,
			Interval: a.cfg.Pipeline.CatchupInterval,
			Sleep:    a.deps.Sleep,
			Logger:   a.logger,
			Process: func(ctx context.Context) error {
				report, err := rt.driver.Run(ctx, pipeline.WatermarkSelector{}, pipeline.Single{Extractor: rt.extractor})
				rt.finished(ctx, notifier, report, err)

				if onReport != nil {
					onReport(report)
				}

				return err
			},
			OnError: func(err error) bool {
				a.logger.Error().Err(err).Msg("Catch-up pass failed")
				return true
			},
		})
	})
}

// Status reports how far the table is behind the channel. It writes nothing.
func (a *App) Status(ctx context.Context) (pipeline.StatusReport, error) {
	var status pipeline.StatusReport

	err := a.withRuntime(ctx, false, func(ctx context.Context, rt *runtime) error {
		var err error

		status, err = rt.driver.Status(ctx)

		return err
	})

	return status, err
}

// RunBackfill appends messages dated within [from, to] that are not yet stored.
func (a *App) RunBackfill(ctx context.Context, from, to time.Time) (pipeline.Report, error) {
	var report pipeline.Report

	err := a.withRuntime(ctx, true, func(ctx context.Context, rt *runtime) error {
		batching := pipeline.Chunked{
			Parser:     llm.NewBatchParser(rt.extractor, a.cfg.Pipeline.ParseBatchSize, a.logger),
			AppendSize: a.cfg.Store.AppendBatchSize,
			Cooldown:   a.cfg.Store.AppendCooldown,
		}

		var err error

		report, err = rt.driver.Run(ctx, pipeline.WindowSelector{From: from, To: to}, batching)
		rt.finished(ctx, a.newNotifier(), report, err)

		return err
	})

	return report, err
}

// runtime is the set of live backends for one invocation.
type runtime struct {
	driver    *pipeline.Driver
	extractor *llm.Extractor
	health    *observability.Server
}

// finished publishes a run outcome to the notifier and the /status endpoint.
func (rt *runtime) finished(ctx context.Context, n notify.Notifier, report pipeline.Report, err error) {
	n.RunFinished(ctx, report, err)

	if rt.health != nil {
		rt.health.RecordRun(report)
	}
}

// withRuntime opens the store, cursor state and (when needed) the extraction
// client, connects the message source, and runs fn. Everything is closed when
// fn returns. extract is false only for status, which also skips migrations.
func (a *App) withRuntime(ctx context.Context, extract bool, fn func(ctx context.Context, rt *runtime) error) error {
	tables, ready, closeTables, err := a.openTables(ctx, extract)
	if err != nil {
		return err
	}
	defer closeTables()

	cursors, closeCursors, err := a.openCursors(ctx)
	if err != nil {
		return err
	}
	defer closeCursors()

	rt := &runtime{}

	if extract {
		extractor, closeExtractor, err := a.newExtractor(ctx)
		if err != nil {
			return err
		}
		defer closeExtractor()

		rt.extractor = extractor
	}

	rt.health = a.startHealthServer(ctx, ready)

	return a.withSource(ctx, func(ctx context.Context, src ports.MessageSource) error {
		rt.driver = pipeline.NewDriver(src, tables, cursors, a.driverSettings(), a.logger)

		return fn(ctx, rt)
	})
}

func (a *App) driverSettings() pipeline.Settings {
	return pipeline.Settings{
		Channel:   a.cfg.ChannelUsername(),
		TableKey:  a.cfg.TableKey(),
		TableName: a.cfg.Store.WorksheetName,
		HardCap:   a.cfg.Pipeline.MessageHardCap,
		AppendPolicy: backoff.Policy{
			Base:        a.cfg.Store.BackoffBase,
			Cap:         a.cfg.Store.BackoffCap,
			MaxAttempts: a.cfg.Store.MaxAttempts,
		},
		Sleep: a.deps.Sleep,
	}
}

func (a *App) withSource(ctx context.Context, fn func(ctx context.Context, src ports.MessageSource) error) error {
	if a.deps.Source != nil {
		return fn(ctx, a.deps.Source)
	}

	return telegram.Run(ctx, a.cfg.Telegram, a.cfg.ChannelUsername(), a.logger, func(ctx context.Context, src *telegram.Source) error {
		return fn(ctx, src)
	})
}

// openTables connects the configured store. Schema migrations run only for
// modes that write; status must not issue DDL.
func (a *App) openTables(ctx context.Context, migrate bool) (ports.TableStore, observability.Pinger, func(), error) {
	if a.deps.Tables != nil {
		return a.deps.Tables, nil, func() {}, nil
	}

	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		opts := postgres.DefaultPoolOptions()
		opts.MaxConns = a.cfg.Store.MaxConnections
		opts.MaxConnIdleTime = a.cfg.Store.MaxConnIdleTime
		opts.HealthCheckPeriod = a.cfg.Store.HealthCheckPeriod

		db, err := postgres.New(ctx, a.cfg.Store.PostgresDSN, opts, a.logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, nil, err
			}
		}

		return postgres.NewStore(db), db, db.Close, nil
	default:
		store, err := sheets.New(ctx, a.cfg.Store.ServiceAccountFile, a.logger)
		if err != nil {
			return nil, nil, nil, err
		}

		return store, nil, func() {}, nil
	}
}

func (a *App) openCursors(ctx context.Context) (ports.CursorStore, func(), error) {
	if a.deps.Cursors != nil {
		return a.deps.Cursors, func() {}, nil
	}

	if a.cfg.Store.StateDBPath == "" {
		return nil, func() {}, nil
	}

	store, err := state.Open(ctx, a.cfg.Store.StateDBPath)
	if err != nil {
		return nil, nil, err
	}

	a.logger.Info().Str("path", a.cfg.Store.StateDBPath).Msg("Scan cursor enabled")

	return store, func() {
		if err := store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close state database")
		}
	}, nil
}

func (a *App) newExtractor(ctx context.Context) (*llm.Extractor, func(), error) {
	gen := a.deps.Generator

	if gen == nil {
		var err error

		gen, err = llm.NewGenerator(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []llm.ExtractorOption{llm.WithRequestTimeout(a.cfg.LLM.RequestLimit)}
	if a.deps.Sleep != nil {
		opts = append(opts, llm.WithSleep(a.deps.Sleep))
	}

	extractor := llm.NewExtractor(gen, ratelimit.NewWindow(a.cfg.LLM.RPMLimit), backoff.Policy{
		Base:        a.cfg.LLM.BackoffBase,
		Cap:         a.cfg.LLM.BackoffCap,
		MaxAttempts: a.cfg.LLM.MaxAttempts,
	}, a.logger, opts...)

	a.logger.Info().Str("provider", string(gen.Name())).Int("rpm", a.cfg.LLM.RPMLimit).Msg("Extraction client ready")

	return extractor, func() {
		if err := gen.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close extraction client")
		}
	}, nil
}

// newNotifier connects the run-summary bot when NOTIFY_BOT_TOKEN is set. A bot
// that cannot be reached only disables summaries.
func (a *App) newNotifier(opts ...notify.Option) notify.Notifier {
	if a.deps.Notifier != nil {
		return a.deps.Notifier
	}

	if !a.cfg.Notify.Enabled() {
		return notify.Nop{}
	}

	bot, err := notify.NewBot(a.cfg.Notify.BotToken, notify.DefaultEndpoint, a.cfg.Notify.ChatID, a.logger, opts...)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Run summaries disabled")
		return notify.Nop{}
	}

	return bot
}

// startHealthServer serves /healthz, /readyz, /status and /metrics while the
// run lasts, when METRICS_PORT is set.
func (a *App) startHealthServer(ctx context.Context, ready observability.Pinger) *observability.Server {
	if a.cfg.Logging.MetricsPort <= 0 {
		return nil
	}

	srv := observability.NewServer(ready, a.cfg.Logging.MetricsPort, a.logger)

	go func() {
		if err := srv.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("health check server error")
		}
	}()

	return srv
}
