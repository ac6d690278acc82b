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
	"time"

	"github.com/lueurxax/fundraising-ledger/internal/app"
	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
	"github.com/lueurxax/fundraising-ledger/internal/platform/logging"
	"github.com/lueurxax/fundraising-ledger/internal/process/pipeline"
)

func main() {
	fromFlag := flag.String("from", "", "First day to scan, YYYY-MM-DD (UTC)")
	toFlag := flag.String("to", "", "Last day to scan, YYYY-MM-DD (UTC), inclusive")

	flag.Parse()

	if *fromFlag == "" || *toFlag == "" {
		log.Fatalf("Usage: %s --from YYYY-MM-DD --to YYYY-MM-DD", os.Args[0])
	}

	from, to, err := app.ParseDateRange(*fromFlag, *toFlag)
	if err != nil {
		log.Fatalf("invalid date range: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	os.Exit(run(cfg, from, to))
}

// run returns the exit code so deferred cleanup flushes the log file first.
func run(cfg *config.Config, from, to time.Time) int {
	logger, closer, err := logging.New(cfg, pipeline.ModeBackfill)
	if err != nil {
		log.Printf("failed to open log: %v", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Time("from", from).Time("to", to).Msg("Starting backfill")

	report, err := app.New(cfg, &logger).RunBackfill(ctx, from, to)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Int("appended", report.Appended).Msg("application stopped")
			return 0
		}

		logger.Error().Err(err).Int("appended", report.Appended).Msg("backfill failed")

		return 1
	}

	fmt.Printf("Done. Appended %d new rows.\n", report.Appended)

	return 0
}
