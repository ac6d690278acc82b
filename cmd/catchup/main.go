package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lueurxax/fundraising-ledger/internal/app"
	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
	"github.com/lueurxax/fundraising-ledger/internal/platform/logging"
	"github.com/lueurxax/fundraising-ledger/internal/process/pipeline"
)

func main() {
	status := flag.Bool("status", false, "Print channel and table positions without writing")
	watch := flag.Bool("watch", false, "Repeat catch-up every CATCHUP_INTERVAL until interrupted")

	flag.Parse()

	if *status && *watch {
		log.Fatalf("Usage: %s [--status | --watch]", os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	os.Exit(run(cfg, *status, *watch))
}

// run returns the exit code so deferred cleanup flushes the log file first.
func run(cfg *config.Config, status, watch bool) int {
	logger, closer, err := logging.New(cfg, pipeline.ModeCatchup)
	if err != nil {
		log.Printf("failed to open log: %v", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, &logger)

	switch {
	case status:
		report, err := application.Status(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("status failed")
			return 1
		}

		printStatus(report)
	case watch:
		err := application.WatchCatchup(ctx, func(r pipeline.Report) {
			fmt.Printf("Pass done. Appended %d new rows.\n", r.Appended)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("watch failed")
			return 1
		}

		logger.Info().Msg("application stopped")
	default:
		report, err := application.RunCatchup(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Int("appended", report.Appended).Msg("application stopped")
				return 0
			}

			logger.Error().Err(err).Int("appended", report.Appended).Msg("catch-up failed")

			return 1
		}

		fmt.Printf("Done. Appended %d new rows.\n", report.Appended)
	}

	return 0
}

func printStatus(s pipeline.StatusReport) {
	fmt.Printf("Channel latest id: %d\n", s.ChannelLatest)

	if s.TableMissing {
		fmt.Println("Table latest id:   none (table does not exist yet)")
	} else {
		fmt.Printf("Table latest id:   %d\n", s.StoreLatest)
	}

	if s.HasCursor {
		fmt.Printf("Scan cursor:       %d\n", s.Cursor)
	}

	if s.UpToDate() {
		fmt.Println("Up to date.")
		return
	}

	fmt.Printf("Behind by %d ids.\n", s.Lag())
}
