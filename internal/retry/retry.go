// Package retry runs operations with bounded exponential backoff.
//
// Delays double from BaseDelay up to MaxDelay. A classifier decides which
// errors are retried and may supply a retry-after hint, which replaces the
// computed delay for that wait. The caller's context bounds every wait.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures the retry loop.
type Policy struct {
	Attempts   int // total attempts including the first; values < 1 mean 1
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64 // values < 1 mean 2

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 3 attempts starting at 200ms, doubling, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
	}
}

// Classifier reports whether err should be retried and an optional
// retry-after hint (zero when absent).
type Classifier func(err error) (retry bool, after time.Duration)

// Always retries every error without a hint.
func Always(error) (bool, time.Duration) { return true, 0 }

// Delay returns the backoff before attempt n+1, for n >= 1.
func (p Policy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// bound is reached or ctx is done. It returns the number of attempts made
// and the final error.
//
// fn receives the 1-based attempt number.
func Do(ctx context.Context, p Policy, classify Classifier, fn func(ctx context.Context, attempt int) error) (int, error) {
	if classify == nil {
		classify = Always
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return attempt - 1, err
			}
			return attempt - 1, fmt.Errorf("retry: %w after %d attempts: %v", err, attempt-1, lastErr)
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		retry, after := classify(err)
		if !retry || attempt == attempts {
			return attempt, err
		}

		delay := p.Delay(attempt)
		if after > 0 {
			delay = after
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if !sleep(ctx, delay) {
			return attempt, fmt.Errorf("retry: %w after %d attempts: %v", ctx.Err(), attempt, lastErr)
		}
	}
	return attempts, lastErr
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
