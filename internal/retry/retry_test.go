package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	errRefused := syscall.ECONNREFUSED
	errDenied := errors.New("permission denied")

	tests := []struct {
		name       string
		failures   []error
		wantCalls  int
		wantErr    error
		wantSuffix bool
	}{
		{name: "first attempt succeeds", wantCalls: 1},
		{name: "succeeds after refusals", failures: []error{errRefused, errRefused}, wantCalls: 3},
		{name: "gives up after max retries", failures: []error{errRefused, errRefused, errRefused, errRefused}, wantCalls: 3, wantErr: errRefused, wantSuffix: true},
		{name: "stops on permanent error", failures: []error{errRefused, errDenied}, wantCalls: 2, wantErr: errDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

			calls := 0
			err := Do(context.Background(), cfg, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, func(err error) bool {
				return errors.Is(err, syscall.ECONNREFUSED)
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantSuffix {
				assert.Contains(t, err.Error(), "failed after 3 retries")
			}
		})
	}
}

func TestDo_NilShouldRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 2, InitialBackoff: time.Millisecond}, func() error {
		calls++
		return errors.New("boom")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := Do(ctx, Config{MaxRetries: 10, InitialBackoff: 50 * time.Millisecond}, func() error {
		calls++
		cancel()
		return errors.New("boom")
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		attempt int
		want    time.Duration
	}{
		{"first wait", Config{InitialBackoff: 10 * time.Millisecond, MaxRetries: 5}, 1, 10 * time.Millisecond},
		{"doubles", Config{InitialBackoff: 10 * time.Millisecond, MaxRetries: 5}, 4, 80 * time.Millisecond},
		{"capped", Config{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, MaxRetries: 5}, 4, 50 * time.Millisecond},
		// 200ms + 200ms * 0.5 * 2 / 5
		{"jitter", Config{InitialBackoff: 100 * time.Millisecond, MaxRetries: 5, Jitter: 0.5}, 2, 240 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(tt.cfg, tt.attempt))
		})
	}
}
