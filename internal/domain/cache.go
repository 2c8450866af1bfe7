package domain

import (
	"context"
	"time"
)

// InsightCache holds generated insights per market for a bounded time.
// Get reports ok=false for missing or expired entries.
type InsightCache interface {
	Get(ctx context.Context, marketID string) (text string, ok bool, err error)
	Set(ctx context.Context, marketID string, text string) error
}

// OrderBookCache keeps recently fetched real order books.
type OrderBookCache interface {
	SetBook(ctx context.Context, book OrderBook) error
	// GetBook returns ErrNotFound when no fresh book is cached.
	GetBook(ctx context.Context, tokenID string) (OrderBook, error)
}

// HistoryCache keeps recently merged real price histories.
type HistoryCache interface {
	SetHistory(ctx context.Context, h PriceHistory) error
	// GetHistory returns ErrNotFound when nothing fresh is cached.
	GetHistory(ctx context.Context, tokenID, period string) (PriceHistory, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides fire-and-forget pub/sub between components.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channels.
const (
	ChannelMarkets = "markets"
)
