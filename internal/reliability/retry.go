// Package reliability provides retry with exponential backoff for operations
// that can fail transiently, chiefly remote image downloads.
package reliability

import (
	"context"
	"time"
)

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// ShouldRetry decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	ShouldRetry func(error) bool

	// Sleep is overridable in tests. A nil Sleep waits with context support.
	Sleep func(context.Context, time.Duration)
}

// DownloadRetryConfig returns the retry policy for remote image fetches:
// three attempts with doubling backoff starting at one second.
func DownloadRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retry runs fn up to MaxAttempts times, sleeping between attempts with
// exponential backoff. It returns nil on the first success, the context error
// if cancelled while waiting, and otherwise the last error fn returned.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.BackoffFactor <= 1.0 {
		config.BackoffFactor = 2.0
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = config.InitialDelay
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxAttempts-1 {
			break
		}

		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := config.delayFor(attempt)
		if config.Sleep != nil {
			config.Sleep(ctx, delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// delayFor returns the backoff delay before attempt+2, capped at MaxDelay.
func (c RetryConfig) delayFor(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return delay
}
