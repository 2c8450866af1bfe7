// Package memory provides process-local implementations of the domain cache
// and bus interfaces, used when Redis is disabled.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

type insightEntry struct {
	text      string
	expiresAt time.Time
}

// InsightCache is a TTL map keyed by market ID. Expired entries are dropped
// lazily when read.
type InsightCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]insightEntry
	now     func() time.Time
}

// NewInsightCache returns an empty cache whose entries live for ttl.
func NewInsightCache(ttl time.Duration) *InsightCache {
	return &InsightCache{
		ttl:     ttl,
		entries: make(map[string]insightEntry),
		now:     time.Now,
	}
}

// Get returns the live entry for marketID.
func (c *InsightCache) Get(_ context.Context, marketID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[marketID]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, marketID)
		return "", false, nil
	}
	return e.text, true, nil
}

// Set stores text for marketID with a fresh expiry.
func (c *InsightCache) Set(_ context.Context, marketID, text string) error {
	c.mu.Lock()
	c.entries[marketID] = insightEntry{text: text, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *InsightCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ domain.InsightCache = (*InsightCache)(nil)
