// Package config defines the top-level configuration for betwixt and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BETWIXT_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Dashboard  DashboardConfig  `toml:"dashboard"`
	Insight    InsightConfig    `toml:"insight"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and request bounds.
type PolymarketConfig struct {
	GammaHost      string   `toml:"gamma_host"`
	ClobHost       string   `toml:"clob_host"`
	RequestTimeout duration `toml:"request_timeout"`
	// ChunkTimeout bounds each price-history chunk request independently.
	ChunkTimeout duration `toml:"chunk_timeout"`
}

// AggregatorConfig controls the market + event refresh cycle.
type AggregatorConfig struct {
	MarketLimit     int      `toml:"market_limit"`
	EventLimit      int      `toml:"event_limit"`
	Order           string   `toml:"order"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// DashboardConfig controls the filtered view served to the UI.
type DashboardConfig struct {
	DefaultFilter string `toml:"default_filter"`
	DefaultLimit  int    `toml:"default_limit"`
	MaxLimit      int    `toml:"max_limit"`
}

// InsightConfig holds the chat-completion backend and insight cache settings.
type InsightConfig struct {
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	Temperature float64  `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
	CacheTTL    duration `toml:"cache_ttl"`
	// RateLimit is the number of insight requests allowed per client per
	// RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// service runs with in-process caches, bus and rate limiter.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	BookTTL    duration `toml:"book_ttl"`
	HistoryTTL duration `toml:"history_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			ClobHost:       "https://clob.polymarket.com",
			RequestTimeout: duration{30 * time.Second},
			ChunkTimeout:   duration{10 * time.Second},
		},
		Aggregator: AggregatorConfig{
			MarketLimit:     100,
			EventLimit:      50,
			Order:           "volume",
			RefreshInterval: duration{30 * time.Second},
		},
		Dashboard: DashboardConfig{
			DefaultFilter: "trending",
			DefaultLimit:  20,
			MaxLimit:      100,
		},
		Insight: InsightConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.6,
			MaxTokens:   512,
			CacheTTL:    duration{5 * time.Minute},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			BookTTL:    duration{5 * time.Second},
			HistoryTTL: duration{time.Minute},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"refresh_failed", "refresh_recovered"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"once":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validFilters mirrors the dashboard categories. Unknown filters are accepted
// at request time, but a misspelled default is almost certainly a mistake.
var validFilters = map[string]bool{
	"trending":     true,
	"recent":       true,
	"closing-soon": true,
	"crypto":       true,
	"politics":     true,
	"sports":       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, once)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.RequestTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: request_timeout must be > 0")
	}
	if c.Polymarket.ChunkTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: chunk_timeout must be > 0")
	}

	// Aggregator
	if c.Aggregator.MarketLimit < 1 {
		errs = append(errs, "aggregator: market_limit must be >= 1")
	}
	if c.Aggregator.EventLimit < 0 {
		errs = append(errs, "aggregator: event_limit must be >= 0")
	}
	if c.Aggregator.RefreshInterval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("aggregator: refresh_interval must be >= 1s, got %s", c.Aggregator.RefreshInterval.Duration))
	}

	// Dashboard
	if !validFilters[c.Dashboard.DefaultFilter] {
		errs = append(errs, fmt.Sprintf("dashboard: unknown default_filter %q", c.Dashboard.DefaultFilter))
	}
	if c.Dashboard.MaxLimit < 1 {
		errs = append(errs, "dashboard: max_limit must be >= 1")
	}
	if c.Dashboard.DefaultLimit < 1 || c.Dashboard.DefaultLimit > c.Dashboard.MaxLimit {
		errs = append(errs, fmt.Sprintf("dashboard: default_limit must be 1-%d, got %d", c.Dashboard.MaxLimit, c.Dashboard.DefaultLimit))
	}

	// Insight
	if c.Insight.Model == "" {
		errs = append(errs, "insight: model must not be empty")
	}
	if c.Insight.MaxTokens < 1 {
		errs = append(errs, "insight: max_tokens must be >= 1")
	}
	if c.Insight.Temperature < 0 || c.Insight.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("insight: temperature must be 0-2, got %g", c.Insight.Temperature))
	}
	if c.Insight.CacheTTL.Duration <= 0 {
		errs = append(errs, "insight: cache_ttl must be > 0")
	}
	if c.Insight.RateLimit < 0 {
		errs = append(errs, "insight: rate_limit must be >= 0")
	}
	if c.Insight.RateLimit > 0 && c.Insight.RateWindow.Duration <= 0 {
		errs = append(errs, "insight: rate_window must be > 0 when rate_limit is set")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
