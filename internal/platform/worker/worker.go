// Package worker runs a job repeatedly until its context is canceled.
// It backs the catch-up watch mode: one pass, a pause, the next pass.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const logFieldWorker = "worker"

// ErrPanic reports a pass that panicked.
var ErrPanic = errors.New("panic in worker pass")

// ProcessFunc is one pass of the job.
type ProcessFunc func(ctx context.Context) error

// Config configures the worker loop behavior.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the pause between the end of one pass and the start of the next.
	Interval time.Duration

	// Process is called each iteration to do the main work.
	Process ProcessFunc

	// OnError is called when Process returns an error.
	// Return true to continue, false to exit the loop.
	OnError func(err error) bool

	// Sleep replaces the interval timer (tests).
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop runs Process, waits Interval, and repeats.
// Returns a wrapped ctx.Err() when the context is canceled, or the first
// error OnError declines to continue past.
func Loop(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	for pass := 1; ; pass++ {
		if err := checkCanceled(ctx, cfg.Name); err != nil {
			return err
		}

		if err := runProcessStep(ctx, cfg, logger); err != nil {
			return err
		}

		logger.Debug().Str(logFieldWorker, cfg.Name).Int("pass", pass).Msg("pass finished")

		if err := sleep(ctx, cfg.Interval); err != nil {
			return fmt.Errorf("worker loop %s: %w", cfg.Name, err)
		}
	}
}

func runProcessStep(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Process == nil {
		return nil
	}

	err := safeProcess(ctx, cfg.Process, logger)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("worker loop %s: %w", cfg.Name, ctx.Err())
	}

	if cfg.OnError != nil {
		if !cfg.OnError(err) {
			return err
		}

		return nil
	}

	logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Msg("process error")

	return nil
}

// safeProcess turns a panic in one pass into an error so the loop survives it.
func safeProcess(ctx context.Context, fn ProcessFunc, logger *zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("recovered from panic")
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return fn(ctx)
}

func checkCanceled(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("worker loop %s: %w", name, ctx.Err())
	default:
		return nil
	}
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
