package core

import (
	"context"
	"sync"
	"time"
)

// MinIntervalThrottler enforces a minimum wall-clock gap between
// outbound requests. The first call is free. Concurrent callers sharing
// a transport share its throttler state; Wait serializes them so the
// spacing holds across goroutines.
type MinIntervalThrottler struct {
	mu          sync.Mutex
	minInterval time.Duration
	clock       func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	last        time.Time
	primed      bool
}

// ThrottlerOption configures a MinIntervalThrottler
type ThrottlerOption func(*MinIntervalThrottler)

// WithThrottlerClock injects a clock, used by tests
func WithThrottlerClock(clock func() time.Time) ThrottlerOption {
	return func(t *MinIntervalThrottler) {
		t.clock = clock
	}
}

// WithThrottlerSleeper injects a sleep primitive, used by tests
func WithThrottlerSleeper(sleep func(ctx context.Context, d time.Duration) error) ThrottlerOption {
	return func(t *MinIntervalThrottler) {
		t.sleep = sleep
	}
}

// NewMinIntervalThrottler creates a throttler with the given minimum
// interval. Negative intervals are treated as zero.
func NewMinIntervalThrottler(minInterval time.Duration, opts ...ThrottlerOption) *MinIntervalThrottler {
	if minInterval < 0 {
		minInterval = 0
	}
	t := &MinIntervalThrottler{
		minInterval: minInterval,
		clock:       time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Wait blocks until the minimum interval since the previous request has
// elapsed, then records the new request time. Cancellation of ctx
// aborts the wait without recording.
func (t *MinIntervalThrottler) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if t.primed {
		remaining := t.minInterval - now.Sub(t.last)
		if remaining > 0 {
			if err := t.sleep(ctx, remaining); err != nil {
				return err
			}
			now = t.clock()
		}
	}
	t.last = now
	t.primed = true
	return nil
}

// Reset forgets the last request time; the next Wait is free.
func (t *MinIntervalThrottler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primed = false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
