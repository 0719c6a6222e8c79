package pipeline

import (
	"context"
	"time"
)

// RetryPolicy controls mechanical re-invocation of a failing stage.
type RetryPolicy struct {
	// MaxAttempts is the total number of Run invocations, minimum 1.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles for every
	// further attempt.
	Backoff time.Duration
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// delayFor returns the backoff before the given attempt (2-based: the delay
// slept after attempt-1 failed). Growth is Backoff * 2^(attempt-2).
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if attempt <= 1 || p.Backoff <= 0 {
		return 0
	}
	delay := p.Backoff
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleep blocks for the given duration or until ctx is cancelled, whichever
// comes first. Cancellation wins immediately; pending backoffs never outlive
// the run.
func sleep(ctx context.Context, d time.Duration) error {
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
