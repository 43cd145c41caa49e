package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	noSleep := func(context.Context, time.Duration) {}

	t.Run("returns nil on first success", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, Sleep: noSleep}, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("makes exactly MaxAttempts attempts before giving up", func(t *testing.T) {
		calls := 0
		wantErr := errors.New("connection refused")
		err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, Sleep: noSleep}, func() error {
			calls++
			return wantErr
		})
		assert.Equal(t, wantErr, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("backoff delays strictly increase", func(t *testing.T) {
		var delays []time.Duration
		cfg := RetryConfig{
			MaxAttempts:   4,
			InitialDelay:  time.Second,
			MaxDelay:      time.Minute,
			BackoffFactor: 2.0,
			Sleep: func(_ context.Context, d time.Duration) {
				delays = append(delays, d)
			},
		}
		_ = Retry(context.Background(), cfg, func() error { return errors.New("timeout") })

		require.Len(t, delays, 3)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	})

	t.Run("stops early on non-retryable error", func(t *testing.T) {
		calls := 0
		permanent := errors.New("invalid image format")
		cfg := RetryConfig{
			MaxAttempts: 3,
			Sleep:       noSleep,
			ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
		}
		err := Retry(context.Background(), cfg, func() error {
			calls++
			return permanent
		})
		assert.Equal(t, permanent, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancelled context between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, RetryConfig{MaxAttempts: 5, Sleep: noSleep}, func() error {
			calls++
			cancel()
			return errors.New("timeout")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("delay is capped at MaxDelay", func(t *testing.T) {
		cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2.0}
		assert.Equal(t, time.Second, cfg.delayFor(0))
		assert.Equal(t, 2*time.Second, cfg.delayFor(1))
		assert.Equal(t, 3*time.Second, cfg.delayFor(2))
		assert.Equal(t, 3*time.Second, cfg.delayFor(10))
	})
}
