// Package backoff implements the capped exponential retry policy shared by the
// extraction client and the persistence writer.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const delayMultiplier = 2

// Policy describes one backoff family.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// Delay returns the sleep after the attempt-th consecutive failure (1-based)
// using the policy base: min(Base*2^(attempt-1), Cap).
func (p Policy) Delay(attempt int) time.Duration {
	return p.DelayFrom(p.Base, attempt)
}

// DelayFrom is Delay with an explicit base, used when the server suggests one.
func (p Policy) DelayFrom(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base

	for i := 1; i < attempt; i++ {
		delay *= delayMultiplier
		if p.Cap > 0 && delay >= p.Cap {
			return p.Cap
		}
	}

	if p.Cap > 0 && delay > p.Cap {
		return p.Cap
	}

	return delay
}

// ExhaustedError is returned once every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retrier runs an operation under a Policy.
type Retrier struct {
	Policy Policy

	// Hint optionally derives the base delay from the failure (server retry hints).
	Hint func(err error) (time.Duration, bool)

	// Retryable reports whether err should be retried; nil retries everything
	// except context cancellation.
	Retryable func(err error) bool

	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep replaces the timer for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls op until it succeeds, a non-retryable error occurs, or the attempt
// budget is spent. No sleep follows the final attempt.
func (r Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := r.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	sleep := r.Sleep
	if sleep == nil {
		sleep = Wait
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !r.retryable(err) {
			return err
		}

		if attempt >= maxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		base := r.Policy.Base
		if r.Hint != nil {
			if hinted, ok := r.Hint(err); ok && hinted > 0 {
				base = hinted
			}
		}

		delay := r.Policy.DelayFrom(base, attempt)

		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (r Retrier) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	if r.Retryable == nil {
		return true
	}

	return r.Retryable(err)
}

// Wait blocks until d elapses or ctx is canceled.
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
