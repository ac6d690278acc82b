package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestPolicy_Delay(t *testing.T) {
	extraction := Policy{Base: 15 * time.Second, Cap: 120 * time.Second, MaxAttempts: 6}
	persistence := Policy{Base: 1500 * time.Millisecond, Cap: 30 * time.Second, MaxAttempts: 5}

	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"extraction first", extraction, 1, 15 * time.Second},
		{"extraction second", extraction, 2, 30 * time.Second},
		{"extraction third", extraction, 3, 60 * time.Second},
		{"extraction fourth capped", extraction, 4, 120 * time.Second},
		{"extraction fifth capped", extraction, 5, 120 * time.Second},
		{"persistence first", persistence, 1, 1500 * time.Millisecond},
		{"persistence second", persistence, 2, 3 * time.Second},
		{"persistence fourth", persistence, 4, 12 * time.Second},
		{"persistence fifth", persistence, 5, 24 * time.Second},
		{"persistence sixth capped", persistence, 6, 30 * time.Second},
		{"zero attempt treated as first", persistence, 0, 1500 * time.Millisecond},
		{"huge attempt does not overflow", extraction, 200, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestPolicy_DelayFromHint(t *testing.T) {
	p := Policy{Base: 15 * time.Second, Cap: 120 * time.Second}

	assert.Equal(t, 7*time.Second, p.DelayFrom(7*time.Second, 1))
	assert.Equal(t, 28*time.Second, p.DelayFrom(7*time.Second, 3))
	assert.Equal(t, 120*time.Second, p.DelayFrom(90*time.Second, 2))
}

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetrier_SucceedsAfterFailures(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0

	var retried []int

	r := Retrier{
		Policy:  Policy{Base: time.Second, Cap: 3 * time.Second, MaxAttempts: 5},
		Sleep:   rec.sleep,
		OnRetry: func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errFlaky
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, rec.delays)
}

func TestRetrier_Exhausted(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0

	r := Retrier{
		Policy: Policy{Base: time.Second, Cap: time.Minute, MaxAttempts: 3},
		Sleep:  rec.sleep,
	}

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2, "no sleep after the final attempt")
}

func TestRetrier_HintOverridesBase(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0

	r := Retrier{
		Policy: Policy{Base: 15 * time.Second, Cap: 120 * time.Second, MaxAttempts: 3},
		Sleep:  rec.sleep,
		Hint: func(error) (time.Duration, bool) {
			return 4 * time.Second, true
		},
	}

	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, rec.delays)
}

func TestRetrier_StopsOnNonRetryable(t *testing.T) {
	calls := 0

	r := Retrier{
		Policy:    Policy{Base: time.Second, MaxAttempts: 5},
		Sleep:     (&recordedSleep{}).sleep,
		Retryable: func(err error) bool { return !errors.Is(err, errFlaky) },
	}

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCanceledIsNotRetried(t *testing.T) {
	calls := 0

	r := Retrier{Policy: Policy{Base: time.Second, MaxAttempts: 5}, Sleep: (&recordedSleep{}).sleep}

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, Wait(context.Background(), 0))
}
