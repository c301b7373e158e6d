package common

import (
	"context"
	"time"
)

// RetryPolicy describes how an operation is retried. Attempts is the total
// number of tries, Delay maps the 1-based attempt index to the wait before
// the next try, and Retryable decides whether an error is worth another
// attempt. A nil Retryable retries everything.
type RetryPolicy struct {
	Attempts  int
	Delay     func(attempt int) time.Duration
	Retryable func(error) bool
}

// LinearBackoff returns a delay function that waits attempt*step, matching
// the inverter protocol's 1s, 2s pacing.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Run executes op until it succeeds, the attempts are exhausted, the error
// is not retryable, or the context is canceled. The returned error is the
// last one op produced.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if p.Delay != nil {
			delay = p.Delay(attempt)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}
	}
	return lastErr
}
