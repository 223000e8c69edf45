package service

import (
	"log"
	"sync"
	"time"
)

// Throttle enforces a maximum number of external calls within a rolling
// time window by blocking the caller until a slot frees up.
type Throttle struct {
	mu       sync.Mutex
	window   time.Duration
	maxCalls int
	issued   []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewThrottle creates a throttle allowing maxPerMinute calls per rolling minute
func NewThrottle(maxPerMinute int) *Throttle {
	return &Throttle{
		window:   time.Minute,
		maxCalls: maxPerMinute,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire blocks until a call may be issued, then records the issue time.
// The lock is held across the wait so concurrent callers queue instead of
// overrunning the window.
func (t *Throttle) Acquire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxCalls <= 0 {
		return
	}

	now := t.now()
	t.prune(now)

	if len(t.issued) >= t.maxCalls {
		wait := t.window - now.Sub(t.issued[0])
		if wait > 0 {
			log.Printf("⏳ Rate limit: waiting %.1fs before next call", wait.Seconds())
			t.sleep(wait)
		}
		now = t.now()
		t.prune(now)
	}

	t.issued = append(t.issued, now)
}

// prune drops issue times that fell out of the rolling window
func (t *Throttle) prune(now time.Time) {
	kept := t.issued[:0]
	for _, ts := range t.issued {
		if now.Sub(ts) < t.window {
			kept = append(kept, ts)
		}
	}
	t.issued = kept
}

// pending returns the number of issue times currently inside the window
func (t *Throttle) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(t.now())
	return len(t.issued)
}
