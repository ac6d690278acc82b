// Package ratelimit provides a calls-per-minute limiter over a sliding window.
//
// Unlike a token bucket, the window never lets more than rpm calls start within
// any trailing minute, which is what free-tier LLM quotas actually enforce.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// DefaultSpan is the length of the sliding window.
const DefaultSpan = 60 * time.Second

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(w *Window) { w.clock = c }
}

// WithSpan replaces the window length.
func WithSpan(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.span = d
		}
	}
}

// Window admits at most rpm calls per span. It is safe for concurrent use;
// callers are served one at a time.
type Window struct {
	rpm    int
	span   time.Duration
	clock  Clock
	turn   chan struct{}
	stamps []time.Time
}

// NewWindow creates a limiter allowing rpm calls per minute (minimum 1).
func NewWindow(rpm int, opts ...Option) *Window {
	if rpm < 1 {
		rpm = 1
	}

	w := &Window{
		rpm:   rpm,
		span:  DefaultSpan,
		clock: realClock{},
		turn:  make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// RPM returns the configured limit.
func (w *Window) RPM() int {
	return w.rpm
}

// Wait blocks until one more call fits in the window, then records it.
func (w *Window) Wait(ctx context.Context) error {
	select {
	case w.turn <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait interrupted: %w", ctx.Err())
	}
	defer func() { <-w.turn }()

	now := w.clock.Now()
	w.prune(now)

	for len(w.stamps) >= w.rpm {
		if d := w.span - now.Sub(w.stamps[0]); d > 0 {
			if err := w.clock.Sleep(ctx, d); err != nil {
				return err
			}
		}

		now = w.clock.Now()
		w.prune(now)
	}

	w.stamps = append(w.stamps, w.clock.Now())

	return nil
}

func (w *Window) prune(now time.Time) {
	keep := 0

	for _, ts := range w.stamps {
		if now.Sub(ts) < w.span {
			w.stamps[keep] = ts
			keep++
		}
	}

	w.stamps = w.stamps[:keep]
}
