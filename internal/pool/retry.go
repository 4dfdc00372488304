package pool

import (
	"context"
	"time"
)

// retryState tracks one Init's bounded retry loop. A fresh retryState is
// built per Init, so the attempt counter resets only on re-initialization.
type retryState struct {
	attempt int // failed attempts so far
	max     int // retries allowed after the initial attempt
	delay   time.Duration
}

func newRetryState(cfg *Config) *retryState {
	max := cfg.MaxRetries
	if max < 0 {
		max = 0
	}
	return &retryState{max: max, delay: cfg.RetryDelay}
}

// exhausted reports whether the retry budget is spent.
func (r *retryState) exhausted() bool {
	return r.attempt >= r.max
}

// wait counts the failed attempt and sleeps for the fixed delay,
// honoring ctx cancellation.
func (r *retryState) wait(ctx context.Context) error {
	r.attempt++
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attempts is the total number of attempts made: 1 initial plus retries.
func (r *retryState) attempts() int {
	return r.attempt + 1
}
