package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// Viewer exposes the current dashboard view.
type Viewer interface {
	View(filter string, limit int) domain.DashboardView
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	markets Viewer
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. markets may be nil.
func NewHealthHandler(markets Viewer, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{markets: markets, logger: logger}
}

// HealthCheck reports liveness plus snapshot freshness.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.markets != nil {
		v := h.markets.View("", 1)
		resp["markets"] = v.Total
		resp["lastUpdated"] = v.LastUpdated
		if v.Error != "" {
			resp["status"] = "degraded"
			resp["error"] = v.Error
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
