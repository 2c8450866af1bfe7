package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betwixt/internal/server"
	"github.com/alanyoungcy/betwixt/internal/server/handler"
	"github.com/alanyoungcy/betwixt/internal/server/ws"
)

// ServerMode runs the refresh loop, the WebSocket hub and the HTTP API until
// ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode",
		slog.Duration("refresh_interval", a.cfg.Aggregator.RefreshInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Refresher.RunLoop(ctx, a.cfg.Aggregator.RefreshInterval.Duration)
	})

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, hub)

	return g.Wait()
}

// OnceMode performs a single refresh and writes the default dashboard view
// to stdout as JSON.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	if err := deps.Markets.Refresh(ctx); err != nil {
		return fmt.Errorf("once mode: %w", err)
	}

	view := deps.Markets.View(a.cfg.Dashboard.DefaultFilter, a.cfg.Dashboard.DefaultLimit)
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("once mode: encode view: %w", err)
	}
	return nil
}

// startHTTPServer adds the HTTP server goroutines to g. The server is shut
// down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Markets, a.logger),
		Markets: handler.NewMarketHandler(deps.Markets, handler.ListDefaults{
			Filter:   a.cfg.Dashboard.DefaultFilter,
			Limit:    a.cfg.Dashboard.DefaultLimit,
			MaxLimit: a.cfg.Dashboard.MaxLimit,
		}, a.logger),
		Insights: handler.NewInsightHandler(deps.Insights, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		InsightRateLimit:  a.cfg.Insight.RateLimit,
		InsightRateWindow: a.cfg.Insight.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
