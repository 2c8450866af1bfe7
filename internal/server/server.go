package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alanyoungcy/betwixt/internal/domain"
	"github.com/alanyoungcy/betwixt/internal/server/handler"
	"github.com/alanyoungcy/betwixt/internal/server/middleware"
	"github.com/alanyoungcy/betwixt/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// InsightRateLimit is the per-client request budget for insight
	// endpoints within InsightRateWindow. Zero disables limiting.
	InsightRateLimit  int
	InsightRateWindow time.Duration
	// RequestTimeout bounds every /api request. Defaults to 30s.
	RequestTimeout time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Insights *handler.InsightHandler
}

// Server is the HTTP + WebSocket API server for betwixt.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered. hub may be nil to
// disable /ws; limiter may be nil to disable insight rate limiting.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))

	insightLimit := middleware.RateLimit(limiter, "insight", cfg.InsightRateLimit, cfg.InsightRateWindow, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))

		r.Get("/health", handlers.Health.HealthCheck)

		r.Route("/markets", func(r chi.Router) {
			r.Get("/", handlers.Markets.ListMarkets)
			r.Post("/refresh", handlers.Markets.RefreshMarkets)
			r.Get("/{id}", handlers.Markets.GetMarket)
			r.Get("/{id}/history", handlers.Markets.MarketHistory)
			r.Get("/{id}/book", handlers.Markets.MarketBook)
			r.With(insightLimit).Post("/{id}/insight", handlers.Insights.ForMarket)
		})

		r.Get("/prices-history", handlers.Markets.PricesHistory)
		r.Get("/book", handlers.Markets.Book)
		r.With(insightLimit).Post("/insights", handlers.Insights.Generate)
	})

	// WebSocket connections are long-lived and stay outside the timeout.
	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		router:     r,
		logger:     logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsOptions allows every origin when none are configured.
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}
