package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BETWIXT_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment are enough to run. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETWIXT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "BETWIXT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "BETWIXT_POLYMARKET_CLOB_HOST")
	setDuration(&cfg.Polymarket.RequestTimeout, "BETWIXT_POLYMARKET_REQUEST_TIMEOUT")
	setDuration(&cfg.Polymarket.ChunkTimeout, "BETWIXT_POLYMARKET_CHUNK_TIMEOUT")

	// ── Aggregator ──
	setInt(&cfg.Aggregator.MarketLimit, "BETWIXT_AGGREGATOR_MARKET_LIMIT")
	setInt(&cfg.Aggregator.EventLimit, "BETWIXT_AGGREGATOR_EVENT_LIMIT")
	setStr(&cfg.Aggregator.Order, "BETWIXT_AGGREGATOR_ORDER")
	setDuration(&cfg.Aggregator.RefreshInterval, "BETWIXT_AGGREGATOR_REFRESH_INTERVAL")

	// ── Dashboard ──
	setStr(&cfg.Dashboard.DefaultFilter, "BETWIXT_DASHBOARD_DEFAULT_FILTER")
	setInt(&cfg.Dashboard.DefaultLimit, "BETWIXT_DASHBOARD_DEFAULT_LIMIT")
	setInt(&cfg.Dashboard.MaxLimit, "BETWIXT_DASHBOARD_MAX_LIMIT")

	// ── Insight ──
	setStr(&cfg.Insight.APIKey, "BETWIXT_INSIGHT_API_KEY")
	setStr(&cfg.Insight.APIKey, "GROQ_API_KEY") // compatibility alias
	setStr(&cfg.Insight.BaseURL, "BETWIXT_INSIGHT_BASE_URL")
	setStr(&cfg.Insight.Model, "BETWIXT_INSIGHT_MODEL")
	setFloat64(&cfg.Insight.Temperature, "BETWIXT_INSIGHT_TEMPERATURE")
	setInt(&cfg.Insight.MaxTokens, "BETWIXT_INSIGHT_MAX_TOKENS")
	setDuration(&cfg.Insight.CacheTTL, "BETWIXT_INSIGHT_CACHE_TTL")
	setInt(&cfg.Insight.RateLimit, "BETWIXT_INSIGHT_RATE_LIMIT")
	setDuration(&cfg.Insight.RateWindow, "BETWIXT_INSIGHT_RATE_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BETWIXT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BETWIXT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETWIXT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETWIXT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETWIXT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETWIXT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETWIXT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BookTTL, "BETWIXT_REDIS_BOOK_TTL")
	setDuration(&cfg.Redis.HistoryTTL, "BETWIXT_REDIS_HISTORY_TTL")

	// ── Server ──
	setInt(&cfg.Server.Port, "BETWIXT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BETWIXT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETWIXT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETWIXT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETWIXT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BETWIXT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BETWIXT_MODE")
	setStr(&cfg.LogLevel, "BETWIXT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
