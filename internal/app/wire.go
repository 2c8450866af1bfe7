package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/betwixt/internal/cache/memory"
	"github.com/alanyoungcy/betwixt/internal/cache/redis"
	"github.com/alanyoungcy/betwixt/internal/config"
	"github.com/alanyoungcy/betwixt/internal/domain"
	"github.com/alanyoungcy/betwixt/internal/notify"
	"github.com/alanyoungcy/betwixt/internal/orderbook"
	"github.com/alanyoungcy/betwixt/internal/pipeline"
	"github.com/alanyoungcy/betwixt/internal/platform/groq"
	"github.com/alanyoungcy/betwixt/internal/platform/polymarket"
	"github.com/alanyoungcy/betwixt/internal/service"
	"github.com/alanyoungcy/betwixt/internal/timeseries"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Caches and bus. HistoryCache and BookCache are nil without Redis.
	InsightCache domain.InsightCache
	HistoryCache domain.HistoryCache
	BookCache    domain.OrderBookCache
	RateLimiter  domain.RateLimiter
	SignalBus    domain.SignalBus

	// Upstream clients
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient
	Groq  *groq.Client

	// Services
	Markets   *service.MarketService
	Insights  *service.InsightService
	Refresher *pipeline.Refresher

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis or in-process caches ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.InsightCache = redis.NewInsightCache(redisClient, cfg.Insight.CacheTTL.Duration)
		deps.HistoryCache = redis.NewHistoryCache(redisClient, cfg.Redis.HistoryTTL.Duration)
		deps.BookCache = redis.NewOrderBookCache(redisClient, cfg.Redis.BookTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		logger.Info("redis disabled, using in-process caches")
		deps.InsightCache = memory.NewInsightCache(cfg.Insight.CacheTTL.Duration)
		deps.RateLimiter = memory.NewRateLimiter()
		deps.SignalBus = memory.NewBus(64)
	}

	// --- Upstream clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, cfg.Polymarket.RequestTimeout.Duration)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, cfg.Polymarket.RequestTimeout.Duration)
	deps.Groq = groq.New(groq.Config{
		APIKey:      cfg.Insight.APIKey,
		BaseURL:     cfg.Insight.BaseURL,
		Model:       cfg.Insight.Model,
		Temperature: cfg.Insight.Temperature,
		MaxTokens:   cfg.Insight.MaxTokens,
		Timeout:     cfg.Polymarket.RequestTimeout.Duration,
	})
	if !deps.Groq.Configured() {
		logger.Warn("insight api key not set, insight endpoints will fail")
	}

	// --- Services ---
	history := timeseries.NewChunker(deps.Clob, cfg.Polymarket.ChunkTimeout.Duration, logger)
	books := orderbook.NewAdapter(deps.Clob, deps.BookCache, logger)

	deps.Markets = service.NewMarketService(
		deps.Gamma,
		history,
		books,
		deps.HistoryCache,
		deps.SignalBus,
		service.MarketServiceConfig{
			MarketLimit: cfg.Aggregator.MarketLimit,
			EventLimit:  cfg.Aggregator.EventLimit,
			Order:       cfg.Aggregator.Order,
		},
		logger,
	)
	deps.Insights = service.NewInsightService(deps.Groq, deps.InsightCache, deps.Markets, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Refresher = pipeline.NewRefresher(deps.Markets, deps.Notifier, logger)

	return deps, cleanup, nil
}
