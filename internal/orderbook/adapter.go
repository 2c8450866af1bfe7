// Package orderbook fetches depth for a trading token and normalizes it into
// sorted numeric levels, substituting a clearly flagged synthetic book when
// the upstream cannot be reached.
package orderbook

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// syntheticLevels is the depth of each side of a synthetic book.
const syntheticLevels = 10

// Source returns the raw book for one token.
type Source interface {
	OrderBook(ctx context.Context, tokenID string) (domain.RawOrderBook, error)
}

// Adapter fetches and normalizes order books.
type Adapter struct {
	source Source
	cache  domain.OrderBookCache // optional
	logger *slog.Logger

	now    func() time.Time
	jitter func() float64
}

// NewAdapter creates an Adapter. cache may be nil.
func NewAdapter(source Source, cache domain.OrderBookCache, logger *slog.Logger) *Adapter {
	return &Adapter{
		source: source,
		cache:  cache,
		logger: logger.With(slog.String("component", "orderbook")),
		now:    time.Now,
		jitter: rand.Float64,
	}
}

// Fetch returns the book for tokenID. An empty tokenID yields (nil, nil).
// Upstream failures produce a synthetic book with Synthetic set; only the
// caller's own context error is returned.
func (a *Adapter) Fetch(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	if tokenID == "" {
		return nil, nil
	}

	if a.cache != nil {
		book, err := a.cache.GetBook(ctx, tokenID)
		if err == nil {
			return &book, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "order book cache read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	raw, err := a.source.OrderBook(ctx, tokenID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.WarnContext(ctx, "order book unavailable, using synthetic book",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		return a.synthesize(tokenID), nil
	}

	book := Normalize(raw)
	book.TokenID = tokenID
	book.FetchedAt = a.now().UTC()

	if a.cache != nil {
		if err := a.cache.SetBook(ctx, book); err != nil {
			a.logger.WarnContext(ctx, "order book cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &book, nil
}

// side accumulates levels keyed by price in the side's natural order.
type side struct {
	tree *btree.BTreeG[level]
}

type level struct {
	price decimal.Decimal
	size  decimal.Decimal
}

func newSide(descending bool) side {
	less := func(a, b level) bool { return a.price.LessThan(b.price) }
	if descending {
		less = func(a, b level) bool { return a.price.GreaterThan(b.price) }
	}
	return side{tree: btree.NewG(8, less)}
}

// add merges size into the level at price.
func (s side) add(price, size decimal.Decimal) {
	if existing, ok := s.tree.Get(level{price: price}); ok {
		size = size.Add(existing.size)
	}
	s.tree.ReplaceOrInsert(level{price: price, size: size})
}

func (s side) levels() []domain.BookLevel {
	out := make([]domain.BookLevel, 0, s.tree.Len())
	s.tree.Ascend(func(l level) bool {
		out = append(out, domain.BookLevel{
			Price: l.price.InexactFloat64(),
			Size:  l.size.InexactFloat64(),
		})
		return true
	})
	return out
}

// Normalize parses every level of raw into numbers and sorts each side:
// bids by price descending, asks ascending. Levels whose price or size does
// not parse are dropped; repeated prices are summed.
func Normalize(raw domain.RawOrderBook) domain.OrderBook {
	bids, asks := newSide(true), newSide(false)
	fill := func(s side, levels []domain.RawBookLevel) {
		for _, l := range levels {
			price, err := decimal.NewFromString(strings.TrimSpace(l.Price))
			if err != nil {
				continue
			}
			size, err := decimal.NewFromString(strings.TrimSpace(l.Size))
			if err != nil {
				continue
			}
			s.add(price, size)
		}
	}
	fill(bids, raw.Bids)
	fill(asks, raw.Asks)

	return domain.OrderBook{
		TokenID: raw.AssetID,
		Bids:    bids.levels(),
		Asks:    asks.levels(),
	}
}

// synthesize builds the placeholder book: syntheticLevels per side around
// 0.5, two cents apart with up to one cent of noise, sizes in [100, 1100).
func (a *Adapter) synthesize(tokenID string) *domain.OrderBook {
	bids, asks := newSide(true), newSide(false)
	for i := range syntheticLevels {
		step := float64(i) * 0.02
		bids.add(decimal.NewFromFloat(0.5-step+a.jitter()*0.01), decimal.NewFromFloat(a.jitter()*1000+100))
		asks.add(decimal.NewFromFloat(0.5+step+a.jitter()*0.01), decimal.NewFromFloat(a.jitter()*1000+100))
	}
	return &domain.OrderBook{
		TokenID:   tokenID,
		Bids:      bids.levels(),
		Asks:      asks.levels(),
		Synthetic: true,
		FetchedAt: a.now().UTC(),
	}
}
