package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// HistoryCache implements domain.HistoryCache using one Redis hash per
// token and period at "history:{tokenID}:{period}" with fields "points"
// (JSON array of {t,p}), "fidelity" and "ts" (write time, unix nanos).
type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewHistoryCache creates a HistoryCache backed by the given Client.
func NewHistoryCache(c *Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{rdb: c.Underlying(), ttl: ttl}
}

func historyKey(tokenID, period string) string {
	return "history:" + tokenID + ":" + period
}

// SetHistory stores a merged series. Synthetic series are rejected so
// placeholders never outlive the outage that produced them.
func (hc *HistoryCache) SetHistory(ctx context.Context, h domain.PriceHistory) error {
	if h.Synthetic {
		return fmt.Errorf("redis: set history %s/%s: refusing synthetic series", h.TokenID, h.Period)
	}
	points, err := json.Marshal(h.Points)
	if err != nil {
		return fmt.Errorf("redis: encode history %s/%s: %w", h.TokenID, h.Period, err)
	}

	key := historyKey(h.TokenID, h.Period)
	pipe := hc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"points":   points,
		"fidelity": strconv.Itoa(h.Fidelity),
		"ts":       strconv.FormatInt(time.Now().UnixNano(), 10),
	})
	if hc.ttl > 0 {
		pipe.Expire(ctx, key, hc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set history %s/%s: %w", h.TokenID, h.Period, err)
	}
	return nil
}

// GetHistory returns the cached series, or domain.ErrNotFound.
func (hc *HistoryCache) GetHistory(ctx context.Context, tokenID, period string) (domain.PriceHistory, error) {
	vals, err := hc.rdb.HGetAll(ctx, historyKey(tokenID, period)).Result()
	if err != nil && err != redis.Nil {
		return domain.PriceHistory{}, fmt.Errorf("redis: get history %s/%s: %w", tokenID, period, err)
	}
	raw, ok := vals["points"]
	if !ok {
		return domain.PriceHistory{}, domain.ErrNotFound
	}

	h := domain.PriceHistory{TokenID: tokenID, Period: period}
	if err := json.Unmarshal([]byte(raw), &h.Points); err != nil {
		return domain.PriceHistory{}, fmt.Errorf("redis: decode history %s/%s: %w", tokenID, period, err)
	}
	h.Fidelity, _ = strconv.Atoi(vals["fidelity"])
	return h, nil
}

// Compile-time interface check.
var _ domain.HistoryCache = (*HistoryCache)(nil)
