package gstr2b

import (
	"sync"
	"time"
)

// The portal rejects bursts well below its documented quota, so turns are
// never scheduled closer than this regardless of the configured rate.
const minPortalSpacing = 50 * time.Millisecond

// RateLimiter spaces requests to the GST portal. On top of the steady
// request rate it absorbs the cool-off the portal demands through 429
// Retry-After answers; see Penalize.
type RateLimiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	interval := time.Second / time.Duration(requestsPerSecond)
	if interval < minPortalSpacing {
		interval = minPortalSpacing
	}
	return &RateLimiter{interval: interval}
}

func (r *RateLimiter) WaitTurn() {
	r.mu.Lock()
	now := time.Now()
	scheduled := now
	if r.nextAllowedAt.After(now) {
		scheduled = r.nextAllowedAt
	}
	r.nextAllowedAt = scheduled.Add(r.interval)
	r.mu.Unlock()

	if sleep := time.Until(scheduled); sleep > 0 {
		time.Sleep(sleep)
	}
}

// Penalize pushes the next turn out by at least d. The client calls this
// with the portal's Retry-After value so every in-flight caller backs off,
// not just the one that saw the 429.
func (r *RateLimiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	until := time.Now().Add(d)
	if until.After(r.nextAllowedAt) {
		r.nextAllowedAt = until
	}
	r.mu.Unlock()
}
