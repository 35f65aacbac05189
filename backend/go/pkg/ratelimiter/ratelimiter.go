package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter is the interface for rate limiting.
type RateLimiter interface {
	// Allow reports whether one more request may proceed now.
	Allow() bool
}

// Clock returns the current time. Limiters take one so tests can control time.
type Clock func() time.Time

// Keyed hands out one limiter per key, e.g. per client IP.
// Idle keys are dropped after idleTTL so the map does not grow without bound.
type Keyed struct {
	factory func() RateLimiter
	idleTTL time.Duration
	now     Clock

	mu       sync.Mutex
	limiters map[string]*keyedEntry
	lastGC   time.Time
}

type keyedEntry struct {
	limiter  RateLimiter
	lastSeen time.Time
}

// NewKeyed creates a per-key limiter set.
func NewKeyed(factory func() RateLimiter, idleTTL time.Duration, now Clock) *Keyed {
	if now == nil {
		now = time.Now
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Keyed{
		factory:  factory,
		idleTTL:  idleTTL,
		now:      now,
		limiters: make(map[string]*keyedEntry),
		lastGC:   now(),
	}
}

// Allow applies the limiter belonging to key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastGC) > k.idleTTL {
		for id, e := range k.limiters {
			if now.Sub(e.lastSeen) > k.idleTTL {
				delete(k.limiters, id)
			}
		}
		k.lastGC = now
	}
	e, ok := k.limiters[key]
	if !ok {
		e = &keyedEntry{limiter: k.factory()}
		k.limiters[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()
	return e.limiter.Allow()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
