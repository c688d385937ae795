package core

import (
	"math/rand"
	"testing"
	"time"
)

func TestIsRetryableAPIStatus(t *testing.T) {
	retryable := []int{500, 503}
	for _, status := range retryable {
		if !IsRetryableAPIStatus(status) {
			t.Errorf("expected %d to be retryable", status)
		}
	}
	for _, status := range []int{0, 200, 400, 404, 501, 502} {
		if IsRetryableAPIStatus(status) {
			t.Errorf("expected %d to not be retryable", status)
		}
	}
}

func TestCanRetryAttemptCeiling(t *testing.T) {
	now := time.Now()
	if !CanRetry(1, 3, now, now, time.Minute) {
		t.Error("attempt 1 of 3 should be retryable")
	}
	if !CanRetry(2, 3, now, now, time.Minute) {
		t.Error("attempt 2 of 3 should be retryable")
	}
	if CanRetry(3, 3, now, now, time.Minute) {
		t.Error("attempt 3 of 3 should not be retryable")
	}
}

func TestCanRetryTimeBudget(t *testing.T) {
	start := time.Now()
	within := start.Add(30 * time.Second)
	beyond := start.Add(2 * time.Minute)
	if !CanRetry(1, 10, start, within, time.Minute) {
		t.Error("within budget should be retryable")
	}
	if CanRetry(1, 10, start, beyond, time.Minute) {
		t.Error("beyond budget should not be retryable")
	}
}

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	maxBackoff := 4 * time.Second

	// attempt index 0 -> base 1s, 1 -> 2s, 2 -> 4s, 3 -> capped at 4s
	for index, wantBase := range []float64{1, 2, 4, 4} {
		delay := NextBackoff(index, maxBackoff, rng)
		seconds := delay.Seconds()
		if seconds < wantBase*0.9 || seconds > wantBase*1.1 {
			t.Errorf("attempt index %d: delay %v outside jitter window around %vs", index, delay, wantBase)
		}
	}
}

func TestNextBackoffZeroMax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if delay := NextBackoff(3, 0, rng); delay != 0 {
		t.Errorf("expected zero backoff with zero max, got %v", delay)
	}
}

func TestNextBackoffNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		if delay := NextBackoff(i%8, 30*time.Second, rng); delay < 0 {
			t.Fatalf("negative backoff %v at iteration %d", delay, i)
		}
	}
}
