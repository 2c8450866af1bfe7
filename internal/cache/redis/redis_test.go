package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestInsightCacheRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	cache := NewInsightCache(c, time.Minute)

	if _, ok, err := cache.Get(ctx, "m1"); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "m1", "bullish"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	text, ok, err := cache.Get(ctx, "m1")
	if err != nil || !ok || text != "bullish" {
		t.Fatalf("Get = %q, %v, %v", text, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "m1"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestOrderBookCacheRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	cache := NewOrderBookCache(c, 5*time.Second)

	if _, err := cache.GetBook(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	book := domain.OrderBook{
		TokenID:   "tok",
		Bids:      []domain.BookLevel{{Price: 0.48, Size: 100}, {Price: 0.47, Size: 250}},
		Asks:      []domain.BookLevel{{Price: 0.52, Size: 80}, {Price: 0.55, Size: 10}},
		FetchedAt: fetched,
	}
	if err := cache.SetBook(ctx, book); err != nil {
		t.Fatalf("SetBook: %v", err)
	}

	got, err := cache.GetBook(ctx, "tok")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if len(got.Bids) != 2 || got.Bids[0].Price != 0.48 || got.Bids[1].Size != 250 {
		t.Errorf("bids = %+v", got.Bids)
	}
	if len(got.Asks) != 2 || got.Asks[0].Price != 0.52 || got.Asks[1].Price != 0.55 {
		t.Errorf("asks = %+v", got.Asks)
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, fetched)
	}

	mr.FastForward(10 * time.Second)
	if _, err := cache.GetBook(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestOrderBookCacheReplacesLevels(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	cache := NewOrderBookCache(c, time.Minute)

	_ = cache.SetBook(ctx, domain.OrderBook{TokenID: "tok", Bids: []domain.BookLevel{{Price: 0.4, Size: 1}, {Price: 0.3, Size: 1}}})
	_ = cache.SetBook(ctx, domain.OrderBook{TokenID: "tok", Bids: []domain.BookLevel{{Price: 0.45, Size: 2}}})

	got, err := cache.GetBook(ctx, "tok")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if len(got.Bids) != 1 || got.Bids[0].Price != 0.45 {
		t.Errorf("bids = %+v, want single 0.45 level", got.Bids)
	}
}

func TestHistoryCache(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	cache := NewHistoryCache(c, time.Minute)

	if _, err := cache.GetHistory(ctx, "tok", "7d"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	h := domain.PriceHistory{
		TokenID:  "tok",
		Period:   "7d",
		Fidelity: 1440,
		Points:   []domain.PricePoint{{T: 100, P: 0.4}, {T: 200, P: 0.45}},
	}
	if err := cache.SetHistory(ctx, h); err != nil {
		t.Fatalf("SetHistory: %v", err)
	}
	got, err := cache.GetHistory(ctx, "tok", "7d")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if got.Fidelity != 1440 || len(got.Points) != 2 || got.Points[1] != h.Points[1] {
		t.Errorf("got %+v", got)
	}

	if _, err := cache.GetHistory(ctx, "tok", "24h"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other period should miss, got %v", err)
	}

	h.Synthetic = true
	h.TokenID = "synthetic"
	if err := cache.SetHistory(ctx, h); err == nil {
		t.Error("expected synthetic series to be rejected")
	}
}

func TestRateLimiterAllow(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Allow #%d denied, want allowed", i)
		}
	}
	ok, err := rl.Allow(ctx, "1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("fourth request should be denied")
	}

	// Other keys have their own window.
	if ok, _ := rl.Allow(ctx, "5.6.7.8", 3, time.Minute); !ok {
		t.Fatal("separate key should be allowed")
	}

	// Once the window has slid past the earlier requests they are forgotten.
	now = base.Add(2 * time.Minute)
	if ok, _ := rl.Allow(ctx, "1.2.3.4", 3, time.Minute); !ok {
		t.Fatal("request after window should be allowed")
	}
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewSignalBus(c)

	ch, err := bus.Subscribe(ctx, domain.ChannelMarkets)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Publish(ctx, domain.ChannelMarkets, []byte(`{"type":"markets_refreshed"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg) != `{"type":"markets_refreshed"}` {
			t.Errorf("payload = %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// Drain any buffered message, then expect closure.
			for range ch {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestHasPattern(t *testing.T) {
	if hasPattern(domain.ChannelMarkets) {
		t.Error("plain channel reported as pattern")
	}
	if !hasPattern("markets.*") {
		t.Error("glob channel not detected")
	}
}
