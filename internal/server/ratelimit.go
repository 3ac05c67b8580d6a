package server

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window counter keyed by an opaque string. Windows
// live in memory; this service runs as a single instance.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter with the given window.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a hit for the key and reports whether it stays within limit
// hits per window.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.entries[key][:0]
	for _, t := range rl.entries[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		rl.entries[key] = kept
		return false
	}

	rl.entries[key] = append(kept, now)
	return true
}
