package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestDelayForGrowsExponentially(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, Backoff: 100 * time.Millisecond}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := policy.delayFor(tc.attempt); got != tc.want {
			t.Errorf("delayFor(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelayForZeroBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}
	if got := policy.delayFor(2); got != 0 {
		t.Fatalf("delayFor(2) = %v, want 0", got)
	}
}

func TestNormalizeClampsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 0, Backoff: -time.Second}.normalize()
	if policy.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", policy.MaxAttempts)
	}
	if policy.Backoff != 0 {
		t.Fatalf("Backoff = %v, want 0", policy.Backoff)
	}
}

func TestSleepAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := time.Now()
	if err := sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected cancellation error")
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("sleep did not abort promptly: %v", elapsed)
	}
}
