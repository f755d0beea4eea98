// Package retry retries operations with exponential backoff.
//
// The admin client uses it to ride out the short window during which a
// freshly started server has not bound its socket yet.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the backoff schedule. MaxRetries and InitialBackoff must
// be positive.
type Config struct {
	// MaxRetries is the number of attempts, the first one included.
	MaxRetries int

	// InitialBackoff is the wait before the second attempt. It doubles on
	// every following attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter in [0, 1] stretches later waits by up to that fraction.
	Jitter float64
}

// ShouldRetryFunc tells whether an error is worth another attempt.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, shouldRetry rejects its error, attempts
// run out or ctx is done. A nil shouldRetry retries every error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(Backoff(cfg, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// Backoff returns the wait before attempt (1-based count of attempts
// already made): InitialBackoff * 2^(attempt-1), capped, plus jitter
// growing linearly with attempt.
func Backoff(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 && cfg.MaxRetries > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}

	return backoff
}
