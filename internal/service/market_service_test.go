package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/betwixt/internal/cache/memory"
	"github.com/alanyoungcy/betwixt/internal/domain"
	"github.com/alanyoungcy/betwixt/internal/platform/polymarket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu          sync.Mutex
	markets     []domain.RawMarket
	marketsErr  error
	events      []domain.RawEvent
	eventsErr   error
	byID        map[string]domain.RawMarket
	getErr      error
	eventLookup func(q polymarket.EventQuery) ([]domain.RawEvent, error)

	marketQueries []polymarket.MarketQuery
	eventQueries  []polymarket.EventQuery
	listCalls     atomic.Int32
}

func (f *fakeSource) ListMarkets(_ context.Context, q polymarket.MarketQuery) ([]domain.RawMarket, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	f.marketQueries = append(f.marketQueries, q)
	f.mu.Unlock()
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	if q.ID != "" {
		for _, m := range f.markets {
			if m.ID == q.ID {
				return []domain.RawMarket{m}, nil
			}
		}
		return nil, nil
	}
	return f.markets, nil
}

func (f *fakeSource) GetMarket(_ context.Context, id string) (domain.RawMarket, error) {
	if f.getErr != nil {
		return domain.RawMarket{}, f.getErr
	}
	m, ok := f.byID[id]
	if !ok {
		return domain.RawMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeSource) ListEvents(_ context.Context, q polymarket.EventQuery) ([]domain.RawEvent, error) {
	f.mu.Lock()
	f.eventQueries = append(f.eventQueries, q)
	f.mu.Unlock()
	if f.eventLookup != nil && (q.ID != "" || q.ConditionID != "") {
		return f.eventLookup(q)
	}
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events, nil
}

type fakeHistory struct {
	calls  atomic.Int32
	result domain.PriceHistory
	err    error
}

func (f *fakeHistory) Fetch(_ context.Context, tokenID, period string) (domain.PriceHistory, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.PriceHistory{}, f.err
	}
	h := f.result
	h.TokenID, h.Period = tokenID, period
	return h, nil
}

type fakeBooks struct {
	book *domain.OrderBook
	err  error
}

func (f *fakeBooks) Fetch(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	if tokenID == "" {
		return nil, nil
	}
	return f.book, f.err
}

type memHistoryCache struct {
	mu    sync.Mutex
	items map[string]domain.PriceHistory
}

func (c *memHistoryCache) SetHistory(_ context.Context, h domain.PriceHistory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]domain.PriceHistory{}
	}
	c.items[h.TokenID+"/"+h.Period] = h
	return nil
}

func (c *memHistoryCache) GetHistory(_ context.Context, tokenID, period string) (domain.PriceHistory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.items[tokenID+"/"+period]
	if !ok {
		return domain.PriceHistory{}, domain.ErrNotFound
	}
	return h, nil
}

func rawMarket(id, question string) domain.RawMarket {
	return domain.RawMarket{
		ID:            id,
		Question:      question,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.6","0.4"]`,
		ClobTokenIDs:  `["tok-` + id + `-yes","tok-` + id + `-no"]`,
		Active:        true,
	}
}

func newTestMarketService(src *fakeSource, hist *fakeHistory, books *fakeBooks, cache domain.HistoryCache, bus domain.SignalBus) *MarketService {
	if hist == nil {
		hist = &fakeHistory{}
	}
	if books == nil {
		books = &fakeBooks{}
	}
	return NewMarketService(src, hist, books, cache, bus, MarketServiceConfig{}, discardLogger())
}

func TestRefreshMergesAndPublishes(t *testing.T) {
	src := &fakeSource{
		markets: []domain.RawMarket{rawMarket("1", "A?"), rawMarket("2", "B?")},
		events: []domain.RawEvent{{
			ID:      "e1",
			Title:   "Event",
			EndDate: "2030-01-01T00:00:00Z",
			Markets: []domain.RawMarket{rawMarket("2", "B?"), rawMarket("3", "C?")},
		}},
	}
	bus := memory.NewBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx, domain.ChannelMarkets)

	svc := newTestMarketService(src, nil, nil, nil, bus)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap.Markets) != 3 {
		t.Fatalf("got %d markets, want 3", len(snap.Markets))
	}
	ids := []string{snap.Markets[0].ID, snap.Markets[1].ID, snap.Markets[2].ID}
	if ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Errorf("order = %v", ids)
	}
	if snap.Markets[1].EndDate != "2030-01-01T00:00:00Z" {
		t.Errorf("event end date not filled: %q", snap.Markets[1].EndDate)
	}

	q := src.marketQueries[0]
	if !q.OpenOnly || q.Limit != 100 || q.Order != "volume" || q.Ascending {
		t.Errorf("market query = %+v", q)
	}

	select {
	case msg := <-ch:
		var ev domain.RefreshEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != domain.EventMarketsRefreshed || ev.Count != 3 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no refresh event published")
	}
}

func TestRefreshEventFailureIsTolerated(t *testing.T) {
	src := &fakeSource{
		markets:   []domain.RawMarket{rawMarket("1", "A?")},
		eventsErr: errors.New("boom"),
	}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := len(svc.Snapshot().Markets); n != 1 {
		t.Errorf("got %d markets, want 1", n)
	}
}

func TestRefreshFailureKeepsStaleSnapshot(t *testing.T) {
	src := &fakeSource{markets: []domain.RawMarket{rawMarket("1", "A?")}}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	before := svc.Snapshot()

	src.marketsErr = domain.ErrUpstream
	if err := svc.Refresh(context.Background()); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("second Refresh err = %v", err)
	}

	after := svc.Snapshot()
	if len(after.Markets) != 1 || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("snapshot replaced on failure: %+v", after)
	}
	v := svc.View("trending", 10)
	if v.Error == "" {
		t.Error("view should report last error")
	}
	if v.LastUpdated == nil || len(v.Markets) != 1 {
		t.Errorf("view = %+v", v)
	}

	src.marketsErr = nil
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery Refresh: %v", err)
	}
	if svc.LastError() != "" {
		t.Errorf("error not cleared: %q", svc.LastError())
	}
}

func TestRefreshSerialized(t *testing.T) {
	src := &fakeSource{markets: []domain.RawMarket{rawMarket("1", "A?")}}
	svc := newTestMarketService(src, nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Refresh(context.Background())
		}()
	}
	wg.Wait()
	if got := src.listCalls.Load(); got != 8 {
		t.Errorf("list calls = %d, want 8", got)
	}
	if len(svc.Snapshot().Markets) != 1 {
		t.Error("snapshot lost under concurrent refresh")
	}
}

func TestViewBeforeRefresh(t *testing.T) {
	svc := newTestMarketService(&fakeSource{}, nil, nil, nil, nil)
	v := svc.View("bogus", 5)
	if v.Filter != "trending" || v.Total != 0 || v.LastUpdated != nil || len(v.Markets) != 0 {
		t.Errorf("view = %+v", v)
	}
}

func TestViewFilterAndLimit(t *testing.T) {
	m1 := rawMarket("1", "Will bitcoin hit 100k?")
	m1.Tags = []domain.Tag{{ID: "21", Label: "Crypto", Slug: "crypto"}}
	m2 := rawMarket("2", "Election?")
	m3 := rawMarket("3", "Ethereum flips?")
	m3.Tags = []domain.Tag{{Label: "Ethereum"}}
	src := &fakeSource{markets: []domain.RawMarket{m1, m2, m3}}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	_ = svc.Refresh(context.Background())

	v := svc.View("crypto", 1)
	if v.Total != 2 || len(v.Markets) != 1 || v.Markets[0].ID != "1" {
		t.Errorf("view = %+v", v)
	}
	if v.Filter != "crypto" || v.Limit != 1 {
		t.Errorf("filter/limit = %q/%d", v.Filter, v.Limit)
	}
}

func TestDetailsFallbackAndEventMerge(t *testing.T) {
	m := rawMarket("7", "Q?")
	m.ConditionID = "0xcond"
	m.ResolutionSource = "AP"
	src := &fakeSource{
		markets: []domain.RawMarket{m},
		byID:    map[string]domain.RawMarket{},
		eventLookup: func(q polymarket.EventQuery) ([]domain.RawEvent, error) {
			if q.ConditionID == "0xcond" {
				return []domain.RawEvent{{
					ID:          "e",
					StartDate:   "2025-01-01T00:00:00Z",
					EndDate:     "2026-01-01T00:00:00Z",
					Description: "event description",
					Tags:        []domain.Tag{{ID: "2", Label: "Politics"}},
				}}, nil
			}
			return nil, nil
		},
	}
	hist := &fakeHistory{result: domain.PriceHistory{Points: []domain.PricePoint{{T: 1, P: 0.5}}}}
	books := &fakeBooks{book: &domain.OrderBook{TokenID: "tok-7-yes"}}
	svc := newTestMarketService(src, hist, books, nil, nil)

	d, err := svc.Details(context.Background(), "7", "30d")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.StartDate != "2025-01-01T00:00:00Z" || d.EndDate != "2026-01-01T00:00:00Z" {
		t.Errorf("dates = %q %q", d.StartDate, d.EndDate)
	}
	if d.Description != "event description" || len(d.Tags) != 1 || d.Tags[0].Label != "Politics" {
		t.Errorf("event fields not merged: %+v", d)
	}
	if d.Volume24hr != "0" || d.Liquidity != "0" {
		t.Errorf("volume/liquidity defaults = %q/%q", d.Volume24hr, d.Liquidity)
	}
	if d.ResolutionSource != "AP" {
		t.Errorf("resolution source = %q", d.ResolutionSource)
	}
	if d.PriceHistory == nil || d.PriceHistory.TokenID != "tok-7-yes" || d.PriceHistory.Period != "30d" {
		t.Errorf("history = %+v", d.PriceHistory)
	}
	if d.OrderBook == nil || d.OrderBook.TokenID != "tok-7-yes" {
		t.Errorf("book = %+v", d.OrderBook)
	}
	last := src.marketQueries[len(src.marketQueries)-1]
	if last.ID != "7" || last.Limit != 1 {
		t.Errorf("fallback query = %+v", last)
	}
}

func TestDetailsPrefersEventIDLookup(t *testing.T) {
	m := rawMarket("8", "Q?")
	m.EventIDs = []string{"e8"}
	m.ConditionID = "0xc"
	m.StartDate = "2024-06-01T00:00:00Z"
	src := &fakeSource{
		byID: map[string]domain.RawMarket{"8": m},
		eventLookup: func(q polymarket.EventQuery) ([]domain.RawEvent, error) {
			if q.ID == "e8" {
				return []domain.RawEvent{{ID: "e8", StartDate: "2020-01-01T00:00:00Z", Title: "Parent"}}, nil
			}
			t.Errorf("unexpected lookup %+v", q)
			return nil, nil
		},
	}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	d, err := svc.Details(context.Background(), "8", "")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.StartDate != "2024-06-01T00:00:00Z" {
		t.Errorf("market start date should win, got %q", d.StartDate)
	}
	if d.EventTitle != "Parent" {
		t.Errorf("event title = %q", d.EventTitle)
	}
	if d.PriceHistory != nil {
		t.Error("history attached without a period")
	}
}

func TestDetailsNotFound(t *testing.T) {
	src := &fakeSource{byID: map[string]domain.RawMarket{}}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	if _, err := svc.Details(context.Background(), "missing", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Details(context.Background(), "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDetailsBothLookupsFail(t *testing.T) {
	src := &fakeSource{getErr: domain.ErrUpstream, marketsErr: domain.ErrRateLimited}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	if _, err := svc.Details(context.Background(), "1", ""); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want fallback error", err)
	}
}

func TestPriceHistoryCachesRealSeriesOnly(t *testing.T) {
	cache := &memHistoryCache{}
	hist := &fakeHistory{result: domain.PriceHistory{Points: []domain.PricePoint{{T: 1, P: 0.4}}}}
	svc := newTestMarketService(&fakeSource{}, hist, nil, cache, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		h, err := svc.PriceHistory(ctx, "tok", "weird")
		if err != nil {
			t.Fatalf("PriceHistory: %v", err)
		}
		if h.Period != "7d" {
			t.Errorf("period = %q, want 7d fallback", h.Period)
		}
	}
	if hist.calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1 (second served from cache)", hist.calls.Load())
	}

	synth := &fakeHistory{result: domain.PriceHistory{Synthetic: true, Points: []domain.PricePoint{{T: 1, P: 0.5}}}}
	svc = newTestMarketService(&fakeSource{}, synth, nil, cache, nil)
	_, _ = svc.PriceHistory(ctx, "other", "24h")
	_, _ = svc.PriceHistory(ctx, "other", "24h")
	if synth.calls.Load() != 2 {
		t.Errorf("synthetic series was cached")
	}
}

func TestTokenFor(t *testing.T) {
	src := &fakeSource{
		markets: []domain.RawMarket{rawMarket("1", "A?")},
		byID:    map[string]domain.RawMarket{"9": rawMarket("9", "Z?")},
	}
	svc := newTestMarketService(src, nil, nil, nil, nil)
	_ = svc.Refresh(context.Background())
	ctx := context.Background()

	if tok, err := svc.TokenFor(ctx, "1", 1); err != nil || tok != "tok-1-no" {
		t.Errorf("TokenFor snapshot = %q, %v", tok, err)
	}
	if tok, err := svc.TokenFor(ctx, "9", 0); err != nil || tok != "tok-9-yes" {
		t.Errorf("TokenFor upstream = %q, %v", tok, err)
	}
	if _, err := svc.TokenFor(ctx, "1", 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("out of range err = %v", err)
	}
	if _, err := svc.TokenFor(ctx, "1", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative err = %v", err)
	}
}

func TestOrderBookPassThrough(t *testing.T) {
	book := &domain.OrderBook{TokenID: "tok", Bids: []domain.BookLevel{{Price: 0.4, Size: 1}}}
	svc := newTestMarketService(&fakeSource{}, nil, &fakeBooks{book: book}, nil, nil)
	got, err := svc.OrderBook(context.Background(), "tok")
	if err != nil || got != book {
		t.Fatalf("OrderBook = %v, %v", got, err)
	}
	got, err = svc.OrderBook(context.Background(), "")
	if err != nil || got != nil {
		t.Fatalf("empty token = %v, %v", got, err)
	}
}
