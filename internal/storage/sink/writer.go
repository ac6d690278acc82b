// Package sink writes output rows to the destination table with retries and
// keeps its header row in shape.
package sink

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
	"github.com/lueurxax/fundraising-ledger/internal/platform/backoff"
	"github.com/lueurxax/fundraising-ledger/internal/platform/observability"
)

const (
	// DefaultBackoffBase is the first append retry delay.
	DefaultBackoffBase = 1500 * time.Millisecond

	// DefaultBackoffCap caps a single append retry delay.
	DefaultBackoffCap = 30 * time.Second

	// DefaultMaxAttempts is the append attempt budget.
	DefaultMaxAttempts = 5

	headerRow = 1
)

// Writer appends rows to one table.
type Writer struct {
	table   ports.Table
	created bool
	policy  backoff.Policy
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zerolog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithSleep replaces the backoff timer (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Writer) { w.sleep = fn }
}

// NewWriter creates a Writer for table. created tells EnsureHeader the table
// was just made and has no header yet.
func NewWriter(table ports.Table, created bool, policy backoff.Policy, logger *zerolog.Logger, opts ...Option) *Writer {
	if policy.Base <= 0 {
		policy.Base = DefaultBackoffBase
	}

	if policy.Cap <= 0 {
		policy.Cap = DefaultBackoffCap
	}

	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}

	w := &Writer{
		table:   table,
		created: created,
		policy:  policy,
		sleep:   backoff.Wait,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// EnsureHeader makes row 1 equal domain.Headers. A fresh table gets the header
// written unconditionally; an existing one is only rewritten on drift.
func (w *Writer) EnsureHeader(ctx context.Context) error {
	if w.created {
		if err := w.writeHeader(ctx); err != nil {
			return err
		}

		w.created = false
		w.logger.Info().Msg("Wrote header to new table")

		return nil
	}

	var current []string

	err := w.retrier("read_header").Do(ctx, func(ctx context.Context) error {
		row, err := w.table.HeaderRow(ctx)
		if err != nil {
			return err
		}

		current = row

		return nil
	})
	if err != nil {
		return fmt.Errorf("reading header row: %w", err)
	}

	if slices.Equal(current, domain.Headers) {
		return nil
	}

	if err := w.writeHeader(ctx); err != nil {
		return err
	}

	w.logger.Warn().Strs("found", current).Msg("Header row differed, overwritten")

	return nil
}

func (w *Writer) writeHeader(ctx context.Context) error {
	err := w.retrier("write_header").Do(ctx, func(ctx context.Context) error {
		return w.table.UpdateRow(ctx, headerRow, domain.Headers, ports.ValueInputRaw)
	})
	if err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}

	return nil
}

// Append writes rows in order as user-entered values. Every failure is retried
// with min(base*2^(k-1), cap); when the budget is spent the returned error
// wraps ErrAppendFailed.
func (w *Writer) Append(ctx context.Context, rows []domain.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, []string(r))
	}

	err := w.retrier("append").Do(ctx, func(ctx context.Context) error {
		return w.table.AppendRows(ctx, values, ports.ValueInputUserEntered)
	})
	if err != nil {
		var exhausted *backoff.ExhaustedError
		if errors.As(err, &exhausted) {
			return fmt.Errorf("%w: %w", errors.ErrAppendFailed, exhausted.Err)
		}

		return err
	}

	observability.RowsAppendedTotal.Add(float64(len(rows)))
	w.logger.Debug().Int("rows", len(rows)).Msg("Appended rows")

	return nil
}

func (w *Writer) retrier(op string) backoff.Retrier {
	return backoff.Retrier{
		Policy: w.policy,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			if op == "append" {
				observability.AppendRetriesTotal.Inc()
			}

			w.logger.Warn().
				Err(err).
				Str("op", op).
				Str("kind", classify(err)).
				Int("attempt", attempt).
				Int("max_attempts", w.policy.MaxAttempts).
				Dur("delay", delay).
				Msg("Store call failed, retrying")
		},
		Sleep: w.sleep,
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, errors.ErrStoreRateLimited):
		return "rate_limited"
	case errors.Is(err, errors.ErrStoreTransient):
		return "transient"
	default:
		return "unexpected"
	}
}
