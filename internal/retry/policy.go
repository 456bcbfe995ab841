// Package retry applies a bounded exponential backoff around a single call site.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how many times and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Retryable decides whether a failed attempt may be repeated. A nil
	// predicate retries every error.
	Retryable func(error) bool

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Exponential builds a policy doubling delay from base, capped at maxDelay.
func Exponential(attempts int, base, maxDelay time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   base,
		Multiplier:  2,
		MaxDelay:    maxDelay,
		Retryable:   retryable,
	}
}

// Delay returns the wait before attempt n+1, where n counts from 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The last error is returned unwrapped so callers can still
// inspect its type.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if n == attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		if sleepErr := p.sleep(ctx, p.Delay(n)); sleepErr != nil {
			return fmt.Errorf("retry interrupted: %w", err)
		}
	}
	return err
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
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
