package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter allows limit requests per window; the count resets when a window ends.
type FixedWindowCounter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         Clock
	mutex       sync.Mutex
}

// NewFixedWindowCounter creates a counter starting a window now.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return NewFixedWindowCounterWithClock(limit, window, time.Now)
}

// NewFixedWindowCounterWithClock creates a counter that reads time from now.
func NewFixedWindowCounterWithClock(limit int, window time.Duration, now Clock) *FixedWindowCounter {
	return &FixedWindowCounter{
		limit:       limit,
		window:      window,
		windowStart: now(),
		now:         now,
	}
}

func (fwc *FixedWindowCounter) Allow() bool {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	now := fwc.now()
	if !now.Before(fwc.windowStart.Add(fwc.window)) {
		fwc.windowStart = now
		fwc.count = 0
	}

	if fwc.count < fwc.limit {
		fwc.count++
		return true
	}
	return false
}
