// Package pipeline runs the background market refresh loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/betwixt/internal/notify"
)

// MarketRefresher rebuilds the aggregated market snapshot.
type MarketRefresher interface {
	Refresh(ctx context.Context) error
}

// Alerter sends operator alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Refresher drives MarketRefresher on an interval and alerts operators when
// refreshing starts failing and when it recovers.
type Refresher struct {
	markets MarketRefresher
	alerter Alerter
	logger  *slog.Logger

	failing  bool
	failures int
	since    time.Time
	now      func() time.Time
}

// NewRefresher creates a Refresher. alerter may be nil.
func NewRefresher(markets MarketRefresher, alerter Alerter, logger *slog.Logger) *Refresher {
	return &Refresher{
		markets: markets,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "refresher")),
		now:     time.Now,
	}
}

// Run executes a single refresh and handles failure/recovery transitions.
func (r *Refresher) Run(ctx context.Context) error {
	err := r.markets.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.failures++
		if !r.failing {
			r.failing = true
			r.since = r.now()
			r.alert(ctx, notify.EventRefreshFailed, "Market refresh failed",
				fmt.Sprintf("Serving the last good snapshot. Error: %v", err))
		}
		return fmt.Errorf("refresh markets (failure %d): %w", r.failures, err)
	}

	if r.failing {
		r.alert(ctx, notify.EventRefreshRecovered, "Market refresh recovered",
			fmt.Sprintf("Recovered after %d failed attempt(s) over %s.",
				r.failures, r.now().Sub(r.since).Round(time.Second)))
	}
	r.failing = false
	r.failures = 0
	return nil
}

// RunLoop refreshes immediately and then on every tick until ctx is
// cancelled.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("market refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("market refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Refresher) alert(ctx context.Context, event, title, message string) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Notify(ctx, event, title, message); err != nil {
		r.logger.WarnContext(ctx, "alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
