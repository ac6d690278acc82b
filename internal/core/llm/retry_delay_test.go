package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil error", nil, DefaultRetryDelay},
		{"no hint", errors.New("internal error"), DefaultRetryDelay},
		{
			name: "proto text retry_delay",
			err:  errors.New("googleapi: Error 429: quota exceeded ... retry_delay { seconds: 37 }"),
			want: 37 * time.Second,
		},
		{
			name: "json retryDelay",
			err:  errors.New(`{"error": {"details": [{"retryDelay": "21s"}]}}`),
			want: 21 * time.Second,
		},
		{
			name: "fractional seconds",
			err:  errors.New(`"retryDelay": "2.5s"`),
			want: 2500 * time.Millisecond,
		},
		{
			name: "retry-after header",
			err:  errors.New("429 Too Many Requests; Retry-After: 9"),
			want: 9 * time.Second,
		},
		{
			name: "wrapped error keeps text",
			err:  fmt.Errorf("generate: %w", errors.New("retry_delay {\n  seconds: 4\n}")),
			want: 4 * time.Second,
		},
		{
			name: "zero is ignored",
			err:  errors.New("retry_delay { seconds: 0 }"),
			want: DefaultRetryDelay,
		},
		{
			name: "garbage is ignored",
			err:  errors.New("retry_delay { seconds: soon }"),
			want: DefaultRetryDelay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryDelay(tt.err))
		})
	}
}
