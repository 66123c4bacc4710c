package action

import (
	"sync"
	"time"
)

// rateLimiter implements a sliding window rate limiter using in-memory storage.
type rateLimiter struct {
	mu              sync.Mutex
	windows         map[string][]time.Time
	maxWindow       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// newRateLimiter creates a new in-memory sliding window rate limiter.
// It starts a background goroutine to periodically clean up expired entries.
func newRateLimiter(now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	rl := &rateLimiter{
		windows:         make(map[string][]time.Time),
		cleanupInterval: time.Minute,
		now:             now,
		stopCh:          make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow checks whether a request identified by key is within the rate limit.
// It returns true if the request is allowed (count within limit for the given window),
// false if the rate limit has been exceeded. Each allowed call records the current time.
func (r *rateLimiter) Allow(key string, limit int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if window > r.maxWindow {
		r.maxWindow = window
	}

	now := r.now()
	active := prune(r.windows[key], now.Add(-window))

	if len(active) >= limit {
		r.windows[key] = active
		return false
	}

	r.windows[key] = append(active, now)
	return true
}

// cleanupLoop runs periodically to remove expired entries from the windows map.
func (r *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup drops timestamps older than the longest window seen so far.
func (r *rateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.maxWindow)
	for key, timestamps := range r.windows {
		active := prune(timestamps, cutoff)
		if len(active) == 0 {
			delete(r.windows, key)
		} else {
			r.windows[key] = active
		}
	}
}

// prune returns the timestamps after cutoff. Timestamps are appended in
// order so the slice is sorted.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	return timestamps[i:]
}

// stop terminates the background cleanup goroutine.
func (r *rateLimiter) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
