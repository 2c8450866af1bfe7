package handler

import (
	"net/http"
)

// MarketBook returns the order book of one outcome of a market.
// GET /api/markets/{id}/book?outcome=0
func (h *MarketHandler) MarketBook(w http.ResponseWriter, r *http.Request) {
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
	h.writeBook(w, r, token)
}

// Book returns the order book of a CLOB token.
// GET /api/book?token=...
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	h.writeBook(w, r, token)
}

func (h *MarketHandler) writeBook(w http.ResponseWriter, r *http.Request, token string) {
	book, err := h.markets.OrderBook(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get order book")
		return
	}
	if book == nil {
		writeError(w, http.StatusNotFound, "order book not available")
		return
	}
	writeJSON(w, http.StatusOK, book)
}
