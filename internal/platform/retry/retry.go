// Package retry wraps sethvargo/go-retry with the bounded linear backoff used
// for session-store lookups.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// BackoffFunc returns the delay before the given retry (attempt starts at 1).
type BackoffFunc func(attempt int) time.Duration

// Linear returns a backoff of base × attempt.
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. Zero means a single attempt.
	MaxRetries int
	// Backoff computes the wait before each retry. Nil means no wait.
	Backoff BackoffFunc
	// Permanent reports errors that must not be retried. Nil retries every error.
	Permanent func(error) bool
}

// Do runs op until it succeeds, returns a permanent error, the policy is
// exhausted, or ctx is done. The last error from op is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempt := 0
	var b goretry.Backoff = goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if p.Backoff == nil {
			return 0, false
		}
		return p.Backoff(attempt), false
	})
	max := p.MaxRetries
	if max < 0 {
		max = 0
	}
	b = goretry.WithMaxRetries(uint64(max), b)

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(err) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// DoValue is Do for operations that produce a value. The zero value is
// returned with the error when every attempt fails.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
