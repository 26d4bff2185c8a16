package gateway

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries transient failures with a fixed backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// transientError marks a failure that is safe to retry.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Do runs fn until it succeeds, fails permanently, retries run out or ctx ends.
// Only errors wrapped as transient are retried.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn()
		var te transientError
		if err == nil || !errors.As(err, &te) {
			return err
		}
		if i == r.MaxRetries {
			break
		}
		select {
		case <-time.After(r.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
