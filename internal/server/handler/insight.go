package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// InsightService defines what the insight handlers need.
type InsightService interface {
	Generate(ctx context.Context, req domain.InsightRequest) (domain.Insight, error)
	ForMarket(ctx context.Context, id string) (domain.Insight, error)
}

// InsightHandler serves AI market commentary.
type InsightHandler struct {
	insights InsightService
	logger   *slog.Logger
}

// NewInsightHandler creates an InsightHandler.
func NewInsightHandler(insights InsightService, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{insights: insights, logger: logger}
}

// Generate produces an insight from a client-supplied market summary.
// POST /api/insights
func (h *InsightHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.InsightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	insight, err := h.insights.Generate(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to generate insight")
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// ForMarket produces an insight from a server-side summary of the market.
// POST /api/markets/{id}/insight
func (h *InsightHandler) ForMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	insight, err := h.insights.ForMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to generate insight")
		return
	}
	writeJSON(w, http.StatusOK, insight)
}
