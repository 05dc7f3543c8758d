// Package retry runs an operation repeatedly under a bounded attempt budget.
// The remote job client and artifact transfer share it so every stage backs
// off the same way.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy controls how Do repeats an operation.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Delay returns the wait after the given failed attempt (1-based).
	Delay func(attempt int, err error) time.Duration
	// Retryable decides whether err is worth another attempt. Nil retries all errors.
	Retryable func(err error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Hinted is implemented by errors that carry a server-supplied wait, such as
// a rate-limit response with retry_after.
type Hinted interface {
	RetryAfter() time.Duration
}

// Constant waits d between attempts.
func Constant(d time.Duration) func(int, error) time.Duration {
	return func(int, error) time.Duration { return d }
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(base time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// HintOr prefers the wait carried by a Hinted error and falls back to next.
func HintOr(next func(int, error) time.Duration) func(int, error) time.Duration {
	return func(attempt int, err error) time.Duration {
		var hinted Hinted
		if errors.As(err, &hinted) {
			if d := hinted.RetryAfter(); d > 0 {
				return d
			}
		}
		if next == nil {
			return 0
		}
		return next(attempt, err)
	}
}

// Do calls op until it succeeds, returns a non-retryable error, the budget is
// spent or ctx is done. It reports the number of attempts made together with
// the last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt - 1, err
		}
		err = op(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}
		var wait time.Duration
		if p.Delay != nil {
			wait = p.Delay(attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return attempt, err
		}
	}
	return maxAttempts, err
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
