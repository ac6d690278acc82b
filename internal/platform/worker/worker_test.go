package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestLoop_RunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		passes int
		sleeps []time.Duration
	)

	err := Loop(ctx, Config{
		Name:     "catchup",
		Interval: 15 * time.Minute,
		Process: func(context.Context) error {
			passes++
			if passes == 3 {
				cancel()
			}

			return nil
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, passes)
	assert.Equal(t, []time.Duration{15 * time.Minute, 15 * time.Minute, 15 * time.Minute}, sleeps)
}

func TestLoop_OnErrorDecides(t *testing.T) {
	tests := []struct {
		name       string
		keepGoing  bool
		wantPasses int
	}{
		{"continue", true, 3},
		{"stop", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			passes := 0

			err := Loop(ctx, Config{
				Name: "catchup",
				Process: func(context.Context) error {
					passes++
					if passes == 3 {
						cancel()
					}

					return errBoom
				},
				OnError: func(err error) bool {
					assert.ErrorIs(t, err, errBoom)
					return tt.keepGoing
				},
			})

			assert.Equal(t, tt.wantPasses, passes)

			if tt.keepGoing {
				require.ErrorIs(t, err, context.Canceled)
			} else {
				require.ErrorIs(t, err, errBoom)
			}
		})
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []error

	passes := 0

	err := Loop(ctx, Config{
		Name: "catchup",
		Process: func(context.Context) error {
			passes++
			if passes == 1 {
				panic("nil map")
			}

			cancel()

			return nil
		},
		OnError: func(err error) bool {
			seen = append(seen, err)
			return true
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, seen, 1)
	assert.ErrorIs(t, seen[0], ErrPanic)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
