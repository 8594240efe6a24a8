package payments

import (
	"context"
	"time"
)

// RetryPolicy bounds the verification retry loop. The bound is data, not an
// implicit recursion depth, so tests can tighten it.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
	MaxTotal    time.Duration
}

// DefaultRetryPolicy retries twice after the first attempt (3 total) with
// 1s, 2s delays, capped at ~7s of waiting.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxTotal:    7 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	if p.MaxTotal <= 0 {
		p.MaxTotal = 7 * time.Second
	}
	return p
}

// sleep waits for the given delay or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
