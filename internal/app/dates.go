package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
)

const dayLayout = "2006-01-02"

// ParseDateRange turns two calendar dates into the backfill window: from at
// 00:00:00 UTC through to at 23:59:59 UTC, both inclusive.
func ParseDateRange(from, to string) (time.Time, time.Time, error) {
	start, err := parseDay(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --from: %w", err)
	}

	end, err := parseDay(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --to: %w", err)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is after %s", errors.ErrInvalidDateRange, from, to)
	}

	return start, end.Add(24*time.Hour - time.Second), nil
}

// parseDay accepts YYYY-MM-DD and the other unambiguous spellings dateparse
// knows, truncated to the UTC day.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", errors.ErrInvalidInput)
	}

	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", errors.ErrInvalidInput, s, err)
	}

	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
