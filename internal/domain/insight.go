package domain

import "time"

// InsightRequest is the market summary an insight is generated from.
type InsightRequest struct {
	MarketID     string             `json:"marketId"`
	Question     string             `json:"question"`
	Outcomes     []OutcomeWithPrice `json:"outcomes"`
	YesPrice     *float64           `json:"yesPrice"`
	NoPrice      *float64           `json:"noPrice"`
	Volume24hr   string             `json:"volume24hr"`
	Liquidity    string             `json:"liquidity"`
	EndDate      string             `json:"endDate"`
	Description  string             `json:"description"`
	PriceHistory []PricePoint       `json:"priceHistory"`
	// OrderBookSummary is a short human-readable description of depth,
	// e.g. "best bid 48.0% / best ask 52.0%".
	OrderBookSummary string `json:"orderBookSummary"`
}

// Insight is a generated market commentary.
type Insight struct {
	MarketID    string    `json:"marketId"`
	Text        string    `json:"insight"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generatedAt"`
}
