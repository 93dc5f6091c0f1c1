package reliability

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retry loop: Attempts total calls with a fixed Backoff between them.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// ExhaustedError is returned once every attempt of a Policy has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Retry calls fn until it succeeds or the policy is exhausted. onRetry, when set, is
// invoked after each failed attempt that will be retried.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error)) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return &ExhaustedError{Attempts: attempt - 1, Err: lastErr}
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &ExhaustedError{Attempts: attempt, Err: lastErr}
			case <-timer.C:
			}
		}
	}
	return &ExhaustedError{Attempts: p.Attempts, Err: lastErr}
}
