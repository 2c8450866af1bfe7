package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

type fakeMarkets struct {
	view       domain.DashboardView
	viewFilter string
	viewLimit  int
	refreshErr error
	details    domain.MarketDetails
	detailsErr error
	period     string
	history    domain.PriceHistory
	book       *domain.OrderBook
	tokens     map[string][]string
}

func (f *fakeMarkets) View(filter string, limit int) domain.DashboardView {
	f.viewFilter, f.viewLimit = filter, limit
	v := f.view
	v.Filter, v.Limit = filter, limit
	return v
}

func (f *fakeMarkets) Refresh(context.Context) error { return f.refreshErr }

func (f *fakeMarkets) Details(_ context.Context, _ string, period string) (domain.MarketDetails, error) {
	f.period = period
	return f.details, f.detailsErr
}

func (f *fakeMarkets) PriceHistory(_ context.Context, tokenID, period string) (domain.PriceHistory, error) {
	h := f.history
	h.TokenID, h.Period = tokenID, period
	return h, nil
}

func (f *fakeMarkets) OrderBook(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	if tokenID == "" {
		return nil, nil
	}
	return f.book, nil
}

func (f *fakeMarkets) TokenFor(_ context.Context, id string, outcome int) (string, error) {
	toks, ok := f.tokens[id]
	if !ok {
		return "", fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	if outcome >= len(toks) {
		return "", fmt.Errorf("outcome %d: %w", outcome, domain.ErrInvalidInput)
	}
	return toks[outcome], nil
}

type fakeInsights struct {
	err     error
	lastReq domain.InsightRequest
}

func (f *fakeInsights) Generate(_ context.Context, req domain.InsightRequest) (domain.Insight, error) {
	f.lastReq = req
	if f.err != nil {
		return domain.Insight{}, f.err
	}
	return domain.Insight{MarketID: req.MarketID, Text: "analysis"}, nil
}

func (f *fakeInsights) ForMarket(_ context.Context, id string) (domain.Insight, error) {
	if f.err != nil {
		return domain.Insight{}, f.err
	}
	return domain.Insight{MarketID: id, Text: "server-side", Cached: true}, nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestRouter(m *fakeMarkets, ins *fakeInsights) http.Handler {
	mh := NewMarketHandler(m, ListDefaults{Filter: "trending", Limit: 20, MaxLimit: 50}, testLogger())
	ih := NewInsightHandler(ins, testLogger())
	hh := NewHealthHandler(m, testLogger())

	r := chi.NewRouter()
	r.Get("/api/health", hh.HealthCheck)
	r.Get("/api/markets", mh.ListMarkets)
	r.Post("/api/markets/refresh", mh.RefreshMarkets)
	r.Get("/api/markets/{id}", mh.GetMarket)
	r.Get("/api/markets/{id}/history", mh.MarketHistory)
	r.Get("/api/markets/{id}/book", mh.MarketBook)
	r.Post("/api/markets/{id}/insight", ih.ForMarket)
	r.Get("/api/prices-history", mh.PricesHistory)
	r.Get("/api/book", mh.Book)
	r.Post("/api/insights", ih.Generate)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListMarketsLimits(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantFilter string
		wantLimit  int
	}{
		{"defaults", "", "trending", 20},
		{"explicit", "?filter=crypto&limit=5", "crypto", 5},
		{"clamped", "?limit=500", "trending", 50},
		{"malformed", "?limit=abc", "trending", 20},
		{"zero", "?limit=0", "trending", 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMarkets{}
			rec := do(t, newTestRouter(m, &fakeInsights{}), http.MethodGet, "/api/markets"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if m.viewFilter != tt.wantFilter || m.viewLimit != tt.wantLimit {
				t.Errorf("View(%q, %d), want (%q, %d)", m.viewFilter, m.viewLimit, tt.wantFilter, tt.wantLimit)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for _, key := range []string{"markets", "filter", "limit", "total", "pending", "error", "lastUpdated"} {
				if _, ok := body[key]; !ok {
					t.Errorf("response missing %q", key)
				}
			}
		})
	}
}

func TestRefreshMarketsError(t *testing.T) {
	m := &fakeMarkets{refreshErr: fmt.Errorf("gamma: %w", domain.ErrUpstream)}
	rec := do(t, newTestRouter(m, &fakeInsights{}), http.MethodPost, "/api/markets/refresh", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetMarket(t *testing.T) {
	m := &fakeMarkets{details: domain.MarketDetails{
		ProcessedMarket:  domain.ProcessedMarket{ID: "42", Question: "Q?"},
		ResolutionSource: "AP",
	}}
	rec := do(t, newTestRouter(m, &fakeInsights{}), http.MethodGet, "/api/markets/42?history=30d", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if m.period != "30d" {
		t.Errorf("period = %q", m.period)
	}
	var got map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["id"] != "42" || got["resolutionSource"] != "AP" {
		t.Errorf("body = %v", got)
	}

	m.detailsErr = fmt.Errorf("x: %w", domain.ErrNotFound)
	rec = do(t, newTestRouter(m, &fakeInsights{}), http.MethodGet, "/api/markets/43", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMarketHistoryAndBook(t *testing.T) {
	m := &fakeMarkets{
		tokens:  map[string][]string{"1": {"yes-tok", "no-tok"}},
		history: domain.PriceHistory{Points: []domain.PricePoint{{T: 1, P: 0.5}}},
		book:    &domain.OrderBook{TokenID: "no-tok", Bids: []domain.BookLevel{{Price: 0.4, Size: 10}}},
	}
	h := newTestRouter(m, &fakeInsights{})

	rec := do(t, h, http.MethodGet, "/api/markets/1/history?period=24h&outcome=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var hist domain.PriceHistory
	_ = json.Unmarshal(rec.Body.Bytes(), &hist)
	if hist.TokenID != "no-tok" || hist.Period != "24h" {
		t.Errorf("history = %+v", hist)
	}

	rec = do(t, h, http.MethodGet, "/api/markets/1/book", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("book status = %d", rec.Code)
	}

	for target, want := range map[string]int{
		"/api/markets/1/history?outcome=-1": http.StatusBadRequest,
		"/api/markets/1/book?outcome=7":     http.StatusBadRequest,
		"/api/markets/9/book":               http.StatusNotFound,
	} {
		if rec := do(t, h, http.MethodGet, target, ""); rec.Code != want {
			t.Errorf("%s status = %d, want %d", target, rec.Code, want)
		}
	}
}

func TestTokenEndpoints(t *testing.T) {
	m := &fakeMarkets{book: &domain.OrderBook{TokenID: "tok"}}
	h := newTestRouter(m, &fakeInsights{})

	if rec := do(t, h, http.MethodGet, "/api/book", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing token status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/book?token=tok", ""); rec.Code != http.StatusOK {
		t.Errorf("book status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/prices-history?token=tok&period=all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("prices-history status = %d", rec.Code)
	}
	var hist domain.PriceHistory
	_ = json.Unmarshal(rec.Body.Bytes(), &hist)
	if hist.TokenID != "tok" || hist.Period != "all" {
		t.Errorf("history = %+v", hist)
	}
}

func TestInsightEndpoints(t *testing.T) {
	ins := &fakeInsights{}
	h := newTestRouter(&fakeMarkets{}, ins)

	rec := do(t, h, http.MethodPost, "/api/insights", `{"marketId":"m","question":"Q?","yesPrice":0.6}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ins.lastReq.MarketID != "m" || ins.lastReq.YesPrice == nil || *ins.lastReq.YesPrice != 0.6 {
		t.Errorf("request = %+v", ins.lastReq)
	}
	var got map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["insight"] != "analysis" || got["cached"] != false {
		t.Errorf("body = %v", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/insights", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/markets/7/insight", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "server-side") {
		t.Errorf("ForMarket = %d %s", rec.Code, rec.Body.String())
	}
}

func TestInsightErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotConfigured, http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", domain.ErrUpstream, errors.New("reset")), http.StatusBadGateway},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestRouter(&fakeMarkets{}, &fakeInsights{err: tt.err})
			rec := do(t, h, http.MethodPost, "/api/insights", `{"marketId":"m","question":"q"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &fakeMarkets{view: domain.DashboardView{Total: 12, LastUpdated: &updated, Error: "gamma down"}}
	rec := do(t, newTestRouter(m, &fakeInsights{}), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["status"] != "degraded" || got["markets"] != float64(12) || got["error"] != "gamma down" {
		t.Errorf("body = %v", got)
	}
}
