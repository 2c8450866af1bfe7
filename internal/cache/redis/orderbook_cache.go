package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// OrderBookCache implements domain.OrderBookCache using Redis sorted sets and
// hashes. Every key expires after ttl so stale depth is never served.
//
// Key schema:
//
//	book:{tokenID}:bids     - sorted set of bid prices (score = price)
//	book:{tokenID}:asks     - sorted set of ask prices (score = price)
//	book:{tokenID}:bid:size - hash mapping price -> size for bids
//	book:{tokenID}:ask:size - hash mapping price -> size for asks
//	book:{tokenID}:meta     - hash with "ts" field (fetch time, unix nanos)
type OrderBookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOrderBookCache creates an OrderBookCache backed by the given Client.
func NewOrderBookCache(c *Client, ttl time.Duration) *OrderBookCache {
	return &OrderBookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookBidsKey(tokenID string) string    { return "book:" + tokenID + ":bids" }
func bookAsksKey(tokenID string) string    { return "book:" + tokenID + ":asks" }
func bookBidSizeKey(tokenID string) string { return "book:" + tokenID + ":bid:size" }
func bookAskSizeKey(tokenID string) string { return "book:" + tokenID + ":ask:size" }
func bookMetaKey(tokenID string) string    { return "book:" + tokenID + ":meta" }

// SetBook atomically replaces the cached book for its token.
func (oc *OrderBookCache) SetBook(ctx context.Context, book domain.OrderBook) error {
	id := book.TokenID
	keys := []string{bookBidsKey(id), bookAsksKey(id), bookBidSizeKey(id), bookAskSizeKey(id), bookMetaKey(id)}

	pipe := oc.rdb.TxPipeline()
	pipe.Del(ctx, keys...)

	writeSide := func(zKey, hKey string, levels []domain.BookLevel) {
		for _, lvl := range levels {
			priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
			pipe.ZAdd(ctx, zKey, redis.Z{Score: lvl.Price, Member: priceStr})
			pipe.HSet(ctx, hKey, priceStr, strconv.FormatFloat(lvl.Size, 'f', -1, 64))
		}
	}
	writeSide(keys[0], keys[2], book.Bids)
	writeSide(keys[1], keys[3], book.Asks)

	pipe.HSet(ctx, keys[4], "ts", strconv.FormatInt(book.FetchedAt.UnixNano(), 10))

	if oc.ttl > 0 {
		for _, k := range keys {
			pipe.Expire(ctx, k, oc.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set order book %s: %w", id, err)
	}
	return nil
}

// GetBook reconstructs a cached book. It returns domain.ErrNotFound when
// nothing is cached for tokenID.
func (oc *OrderBookCache) GetBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	pipe := oc.rdb.Pipeline()
	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookBidsKey(tokenID), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, bookAsksKey(tokenID), 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, bookBidSizeKey(tokenID))
	askSizeCmd := pipe.HGetAll(ctx, bookAskSizeKey(tokenID))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(tokenID))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.OrderBook{}, fmt.Errorf("redis: get order book %s: %w", tokenID, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.OrderBook{}, domain.ErrNotFound
	}

	book := domain.OrderBook{TokenID: tokenID}
	if tsNano, err := strconv.ParseInt(metaVals["ts"], 10, 64); err == nil {
		book.FetchedAt = time.Unix(0, tsNano).UTC()
	}

	bidSizes, _ := bidSizeCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	book.Bids = readLevels(bidsZ, bidSizes)

	askSizes, _ := askSizeCmd.Result()
	asksZ, _ := asksCmd.Result()
	book.Asks = readLevels(asksZ, askSizes)

	return book, nil
}

// readLevels joins sorted-set members with their sizes, keeping the
// sorted-set order.
func readLevels(zs []redis.Z, sizes map[string]string) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		size := 0.0
		if sizeStr, exists := sizes[priceStr]; exists {
			size, _ = strconv.ParseFloat(sizeStr, 64)
		}
		out = append(out, domain.BookLevel{Price: z.Score, Size: size})
	}
	return out
}

// Compile-time interface check.
var _ domain.OrderBookCache = (*OrderBookCache)(nil)
