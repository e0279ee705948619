package worker

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an exponential backoff for reminder delivery.
// MaxRetries counts the attempts after the first one.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay is the pause after the given failed attempt (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	d := r.InitialDelay
	if d <= 0 {
		d = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds or the retries are spent. onRetry is told
// about each failure that will be retried.
func (r RetryPolicy) Do(
	ctx context.Context,
	sleep func(ctx context.Context, d time.Duration) error,
	fn func() error,
	onRetry func(attempt int, delay time.Duration, err error),
) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt > r.MaxRetries {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		delay := r.NextDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}
