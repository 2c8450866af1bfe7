package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// InsightCache implements domain.InsightCache with plain string keys at
// "insight:{marketID}". Expiry is delegated to Redis key TTLs.
type InsightCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewInsightCache creates an InsightCache backed by the given Client.
func NewInsightCache(c *Client, ttl time.Duration) *InsightCache {
	return &InsightCache{rdb: c.Underlying(), ttl: ttl}
}

func insightKey(marketID string) string {
	return "insight:" + marketID
}

// Get returns the cached insight for marketID, if still live.
func (ic *InsightCache) Get(ctx context.Context, marketID string) (string, bool, error) {
	text, err := ic.rdb.Get(ctx, insightKey(marketID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get insight %s: %w", marketID, err)
	}
	return text, true, nil
}

// Set stores text for marketID, replacing any earlier entry.
func (ic *InsightCache) Set(ctx context.Context, marketID, text string) error {
	if err := ic.rdb.Set(ctx, insightKey(marketID), text, ic.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set insight %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.InsightCache = (*InsightCache)(nil)
