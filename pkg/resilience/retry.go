package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient failures.
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

// Do runs fn until it succeeds, fails with an error retryable rejects, or the retries run
// out. The backoff doubles after every attempt. A nil retryable retries every error.
func (r RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, retryable func(error) bool) error {
	backoff := r.Backoff
	var err error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if attempt == r.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}
