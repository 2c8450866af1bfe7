package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// MarketService defines the methods the market handlers require from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Viewer
	Refresh(ctx context.Context) error
	Details(ctx context.Context, id, period string) (domain.MarketDetails, error)
	PriceHistory(ctx context.Context, tokenID, period string) (domain.PriceHistory, error)
	OrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error)
	TokenFor(ctx context.Context, id string, outcome int) (string, error)
}

// ListDefaults bounds the dashboard list endpoint.
type ListDefaults struct {
	Filter   string
	Limit    int
	MaxLimit int
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets  MarketService
	defaults ListDefaults
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, defaults ListDefaults, logger *slog.Logger) *MarketHandler {
	if defaults.Limit <= 0 {
		defaults.Limit = 20
	}
	if defaults.MaxLimit <= 0 {
		defaults.MaxLimit = 100
	}
	if defaults.Filter == "" {
		defaults.Filter = "trending"
	}
	return &MarketHandler{
		markets:  markets,
		defaults: defaults,
		logger:   logger,
	}
}

// ListMarkets returns the filtered dashboard view.
// GET /api/markets?filter=trending&limit=20
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = h.defaults.Filter
	}
	writeJSON(w, http.StatusOK, h.markets.View(filter, h.limit(r)))
}

// RefreshMarkets triggers an immediate refresh and returns the resulting view.
// POST /api/markets/refresh
func (h *MarketHandler) RefreshMarkets(w http.ResponseWriter, r *http.Request) {
	if err := h.markets.Refresh(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to refresh markets")
		return
	}
	writeJSON(w, http.StatusOK, h.markets.View(h.defaults.Filter, h.limit(r)))
}

// GetMarket returns a single market's details, optionally with history.
// GET /api/markets/{id}?history=7d
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	details, err := h.markets.Details(r.Context(), id, r.URL.Query().Get("history"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// limit clamps the limit query parameter to [1, MaxLimit].
func (h *MarketHandler) limit(r *http.Request) int {
	n, ok := queryInt(r, "limit", h.defaults.Limit)
	if !ok || n == 0 {
		n = h.defaults.Limit
	}
	if n > h.defaults.MaxLimit {
		n = h.defaults.MaxLimit
	}
	return n
}
