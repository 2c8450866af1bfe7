package domain

import "time"

// RefreshEvent is published on ChannelMarkets after every refresh cycle.
type RefreshEvent struct {
	Type    string    `json:"type"` // "markets_refreshed" or "markets_refresh_failed"
	Count   int       `json:"count"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
	Elapsed string    `json:"elapsed"`
}

// Refresh event types.
const (
	EventMarketsRefreshed    = "markets_refreshed"
	EventMarketsRefreshError = "markets_refresh_failed"
)
