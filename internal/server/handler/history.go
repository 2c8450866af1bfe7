package handler

import (
	"net/http"
)

// MarketHistory returns the price history of one outcome of a market.
// GET /api/markets/{id}/history?period=7d&outcome=0
func (h *MarketHandler) MarketHistory(w http.ResponseWriter, r *http.Request) {
	outcome, ok := queryInt(r, "outcome", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome must be a non-negative integer")
		return
	}

	token, err := h.markets.TokenFor(r.Context(), pathParam(r, "id"), outcome)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to resolve market token")
		return
	}

	hist, err := h.markets.PriceHistory(r.Context(), token, r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get price history")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// PricesHistory returns the price history of a CLOB token.
// GET /api/prices-history?token=...&period=7d
func (h *MarketHandler) PricesHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.markets.PriceHistory(r.Context(), r.URL.Query().Get("token"), r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get price history")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
