package core

import (
	"math"
	"math/rand"
	"time"
)

// IsRetryableAPIStatus reports whether a body STATUS may be retried by
// the transport. Only 500 and 503 are transient; everything else is
// surfaced immediately.
func IsRetryableAPIStatus(status int) bool {
	return status == 500 || status == 503
}

// CanRetry gates another attempt on both the attempt counter and the
// total wall-clock retry budget.
func CanRetry(attempt, maxAttempts int, startedAt, now time.Time, totalBudget time.Duration) bool {
	if attempt >= maxAttempts {
		return false
	}
	return now.Sub(startedAt) <= totalBudget
}

// NextBackoff computes the exponential backoff for a 0-based retry
// index: base = min(maxBackoff, 2^attemptIndex seconds), with a
// +-10% jitter, clamped at zero.
func NextBackoff(attemptIndex int, maxBackoff time.Duration, rng *rand.Rand) time.Duration {
	base := math.Min(maxBackoff.Seconds(), math.Pow(2, float64(attemptIndex)))
	if base <= 0 {
		return 0
	}
	jitter := base * 0.1 * (rng.Float64()*2 - 1)
	seconds := math.Max(0, base+jitter)
	return time.Duration(seconds * float64(time.Second))
}
