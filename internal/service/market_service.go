package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betwixt/internal/domain"
	"github.com/alanyoungcy/betwixt/internal/market"
	"github.com/alanyoungcy/betwixt/internal/platform/polymarket"
	"github.com/alanyoungcy/betwixt/internal/timeseries"
)

// MarketSource is the subset of the Gamma client the service reads from.
type MarketSource interface {
	ListMarkets(ctx context.Context, q polymarket.MarketQuery) ([]domain.RawMarket, error)
	GetMarket(ctx context.Context, id string) (domain.RawMarket, error)
	ListEvents(ctx context.Context, q polymarket.EventQuery) ([]domain.RawEvent, error)
}

// HistoryFetcher produces a reconciled price series for a token.
type HistoryFetcher interface {
	Fetch(ctx context.Context, tokenID, period string) (domain.PriceHistory, error)
}

// BookFetcher produces a normalized order book for a token.
type BookFetcher interface {
	Fetch(ctx context.Context, tokenID string) (*domain.OrderBook, error)
}

// MarketServiceConfig holds the upstream query parameters for a refresh.
type MarketServiceConfig struct {
	MarketLimit int
	EventLimit  int
	Order       string
}

// Snapshot is an immutable, fully normalized market list.
type Snapshot struct {
	Markets   []domain.ProcessedMarket
	UpdatedAt time.Time
}

// MarketService owns the aggregated market list and the per-market detail,
// history and depth lookups.
type MarketService struct {
	source  MarketSource
	history HistoryFetcher
	books   BookFetcher
	cache   domain.HistoryCache
	bus     domain.SignalBus
	cfg     MarketServiceConfig
	logger  *slog.Logger
	now     func() time.Time

	refreshMu sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
	lastErr   atomic.Pointer[string]
	pending   atomic.Bool
}

// NewMarketService creates a MarketService. cache and bus may be nil.
func NewMarketService(
	source MarketSource,
	history HistoryFetcher,
	books BookFetcher,
	cache domain.HistoryCache,
	bus domain.SignalBus,
	cfg MarketServiceConfig,
	logger *slog.Logger,
) *MarketService {
	if cfg.MarketLimit <= 0 {
		cfg.MarketLimit = 100
	}
	if cfg.EventLimit <= 0 {
		cfg.EventLimit = 50
	}
	if cfg.Order == "" {
		cfg.Order = "volume"
	}
	return &MarketService{
		source:  source,
		history: history,
		books:   books,
		cache:   cache,
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "market_service")),
		now:     time.Now,
	}
}

// Refresh fetches the flat market list and the event list concurrently,
// merges and normalizes them, and installs the result as the new snapshot.
// On failure the previous snapshot is kept and the error is recorded.
// Concurrent callers are serialized.
func (s *MarketService) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.pending.Store(true)
	defer s.pending.Store(false)

	start := s.now()

	var (
		markets []domain.RawMarket
		events  []domain.RawEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.source.ListMarkets(gctx, polymarket.MarketQuery{
			OpenOnly:  true,
			Limit:     s.cfg.MarketLimit,
			Order:     s.cfg.Order,
			Ascending: false,
		})
		if err != nil {
			return fmt.Errorf("market_service: list markets: %w", err)
		}
		markets = m
		return nil
	})
	g.Go(func() error {
		e, err := s.source.ListEvents(gctx, polymarket.EventQuery{
			OpenOnly: true,
			Limit:    s.cfg.EventLimit,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "event fetch failed, continuing with flat markets",
				slog.String("error", err.Error()),
			)
			return nil
		}
		events = e
		return nil
	})

	if err := g.Wait(); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.publish(ctx, domain.RefreshEvent{
			Type:    domain.EventMarketsRefreshError,
			Count:   len(s.Snapshot().Markets),
			Error:   msg,
			At:      s.now(),
			Elapsed: s.now().Sub(start).String(),
		})
		return err
	}

	processed := market.NormalizeAll(market.Merge(markets, events))
	snap := &Snapshot{Markets: processed, UpdatedAt: s.now()}
	s.snapshot.Store(snap)
	s.lastErr.Store(nil)

	elapsed := s.now().Sub(start)
	s.logger.InfoContext(ctx, "markets refreshed",
		slog.Int("markets", len(markets)),
		slog.Int("events", len(events)),
		slog.Int("merged", len(processed)),
		slog.Duration("elapsed", elapsed),
	)
	s.publish(ctx, domain.RefreshEvent{
		Type:    domain.EventMarketsRefreshed,
		Count:   len(processed),
		At:      snap.UpdatedAt,
		Elapsed: elapsed.String(),
	})
	return nil
}

// Snapshot returns the current snapshot, or an empty one before the first
// successful refresh.
func (s *MarketService) Snapshot() Snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// LastError returns the message of the most recent failed refresh, or ""
// when the last refresh succeeded.
func (s *MarketService) LastError() string {
	if msg := s.lastErr.Load(); msg != nil {
		return *msg
	}
	return ""
}

// View applies filter and limit to the current snapshot.
func (s *MarketService) View(filter string, limit int) domain.DashboardView {
	f := market.ParseFilter(filter)
	snap := s.Snapshot()

	filtered := market.Apply(snap.Markets, f, 0)
	total := len(filtered)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	v := domain.DashboardView{
		Markets: filtered,
		Filter:  string(f),
		Limit:   limit,
		Total:   total,
		Pending: s.pending.Load(),
		Error:   s.LastError(),
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		v.LastUpdated = &t
	}
	return v
}

// Details fetches a single market and enriches it with its parent event.
// When period is non-empty the price history and order book of the first
// token are fetched concurrently and attached.
func (s *MarketService) Details(ctx context.Context, id, period string) (domain.MarketDetails, error) {
	raw, err := s.resolveMarket(ctx, id)
	if err != nil {
		return domain.MarketDetails{}, err
	}

	if ev := s.lookupEvent(ctx, raw); ev != nil {
		if raw.StartDate == "" {
			raw.StartDate = ev.StartDate
		}
		if raw.EndDate == "" {
			raw.EndDate = ev.EndDate
		}
		if len(ev.Tags) > 0 {
			raw.Tags = ev.Tags
		}
		if raw.Description == "" {
			raw.Description = ev.Description
		}
		if raw.EventTitle == "" {
			raw.EventTitle = ev.Title
		}
	}
	if raw.Volume24hr == "" {
		raw.Volume24hr = "0"
	}
	if raw.Liquidity == "" {
		raw.Liquidity = "0"
	}

	pm := market.Normalize(raw)
	details := domain.MarketDetails{
		ProcessedMarket:    pm,
		ResolutionSource:   raw.ResolutionSource,
		ResolutionCriteria: raw.ResolutionCriteria,
	}

	if period == "" || len(pm.TokenIDs) == 0 {
		return details, nil
	}

	token := pm.TokenIDs[0]
	var (
		hist domain.PriceHistory
		book *domain.OrderBook
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hist, err = s.PriceHistory(gctx, token, period)
		return err
	})
	g.Go(func() error {
		var err error
		book, err = s.OrderBook(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.MarketDetails{}, fmt.Errorf("market_service: details %s: %w", id, err)
	}
	details.PriceHistory = &hist
	details.OrderBook = book
	return details, nil
}

// resolveMarket tries the single-market endpoint, then the list endpoint
// filtered by ID.
func (s *MarketService) resolveMarket(ctx context.Context, id string) (domain.RawMarket, error) {
	if id == "" {
		return domain.RawMarket{}, fmt.Errorf("market_service: market id: %w", domain.ErrInvalidInput)
	}

	raw, err := s.source.GetMarket(ctx, id)
	if err == nil {
		return raw, nil
	}
	s.logger.DebugContext(ctx, "direct market lookup failed, trying list",
		slog.String("market_id", id),
		slog.String("error", err.Error()),
	)

	list, err := s.source.ListMarkets(ctx, polymarket.MarketQuery{ID: id, Limit: 1})
	if err != nil {
		return domain.RawMarket{}, fmt.Errorf("market_service: get market %s: %w", id, err)
	}
	if len(list) == 0 {
		return domain.RawMarket{}, fmt.Errorf("market_service: get market %s: %w", id, domain.ErrNotFound)
	}
	return list[0], nil
}

// lookupEvent finds the parent event by event ID, then by condition ID.
// Failures are logged and yield nil.
func (s *MarketService) lookupEvent(ctx context.Context, raw domain.RawMarket) *domain.RawEvent {
	var queries []polymarket.EventQuery
	if len(raw.EventIDs) > 0 && raw.EventIDs[0] != "" {
		queries = append(queries, polymarket.EventQuery{ID: raw.EventIDs[0], Limit: 1})
	}
	if raw.ConditionID != "" {
		queries = append(queries, polymarket.EventQuery{ConditionID: raw.ConditionID, Limit: 1})
	}

	for _, q := range queries {
		events, err := s.source.ListEvents(ctx, q)
		if err != nil {
			s.logger.WarnContext(ctx, "event lookup failed",
				slog.String("market_id", raw.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(events) > 0 {
			return &events[0]
		}
	}
	return nil
}

// PriceHistory returns the series for tokenID, consulting the history
// cache first when one is configured. Only real series are cached.
func (s *MarketService) PriceHistory(ctx context.Context, tokenID, period string) (domain.PriceHistory, error) {
	p, _ := timeseries.ParsePeriod(period)

	if s.cache != nil && tokenID != "" {
		h, err := s.cache.GetHistory(ctx, tokenID, string(p))
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "history cache read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	h, err := s.history.Fetch(ctx, tokenID, string(p))
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("market_service: price history %s: %w", tokenID, err)
	}

	if s.cache != nil && !h.Synthetic && len(h.Points) > 0 {
		if err := s.cache.SetHistory(ctx, h); err != nil {
			s.logger.WarnContext(ctx, "history cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return h, nil
}

// OrderBook returns depth for tokenID. An empty tokenID yields nil.
func (s *MarketService) OrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	book, err := s.books.Fetch(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("market_service: order book %s: %w", tokenID, err)
	}
	return book, nil
}

// TokenFor returns the CLOB token of the given outcome index for market id,
// looking in the current snapshot before asking upstream.
func (s *MarketService) TokenFor(ctx context.Context, id string, outcome int) (string, error) {
	if outcome < 0 {
		return "", fmt.Errorf("market_service: outcome %d: %w", outcome, domain.ErrInvalidInput)
	}

	var tokens []string
	found := false
	for _, m := range s.Snapshot().Markets {
		if m.ID == id {
			tokens, found = m.TokenIDs, true
			break
		}
	}
	if !found {
		raw, err := s.resolveMarket(ctx, id)
		if err != nil {
			return "", err
		}
		tokens = market.Normalize(raw).TokenIDs
	}

	if len(tokens) == 0 {
		return "", fmt.Errorf("market_service: market %s has no tokens: %w", id, domain.ErrNotFound)
	}
	if outcome >= len(tokens) {
		return "", fmt.Errorf("market_service: outcome %d of %d: %w", outcome, len(tokens), domain.ErrInvalidInput)
	}
	return tokens[outcome], nil
}

func (s *MarketService) publish(ctx context.Context, ev domain.RefreshEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		s.logger.WarnContext(ctx, "publish refresh event failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
