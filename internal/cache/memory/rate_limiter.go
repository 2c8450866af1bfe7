package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// RateLimiter is a process-local sliding-window limiter with the same
// semantics as the Redis one: a request counts only when allowed.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// NewRateLimiter returns an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow reports whether key may make another request within window.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-window)

	hits := rl.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= limit {
		rl.hits[key] = hits
		return false, nil
	}
	rl.hits[key] = append(hits, now)
	return true, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
