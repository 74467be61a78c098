// Package retry implements bounded exponential backoff for transient errors.
//
// Only errors the caller classifies as retryable are retried; typed
// application errors surface immediately.
package retry

import (
	"context"
	"time"
)

// Policy controls backoff behavior.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is the policy used for transient database errors.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   50 * time.Millisecond,
	MaxDelay:    1 * time.Second,
}

// Do runs fn up to p.MaxAttempts times, sleeping with exponential backoff
// between attempts while retryable(err) holds. The last error is returned
// when attempts are exhausted. Context cancellation aborts the wait.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
