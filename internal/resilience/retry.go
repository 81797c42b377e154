// Package resilience holds the retry and circuit-breaking helpers shared by
// the outbound API clients.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidAttempts is returned when RetryLinear is called with attempts <= 0.
var ErrInvalidAttempts = errors.New("attempts must be greater than zero")

// RetryLinear runs op up to attempts times, sleeping step*attempt after each
// failed attempt. It never starts an attempt once ctx is done, and it gives up
// early when the next sleep would end past ctx's deadline.
// The error from the last attempt is returned when all attempts fail.
func RetryLinear(ctx context.Context, attempts int, step time.Duration, op func(ctx context.Context, attempt int) error) error {
	if attempts <= 0 {
		return ErrInvalidAttempts
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
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		slog.Debug("operation failed", "attempt", attempt, "maxAttempts", attempts, "error", lastErr)

		if attempt == attempts {
			break
		}

		delay := step * time.Duration(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}
