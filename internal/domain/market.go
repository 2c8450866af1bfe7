package domain

import "time"

// Tag is a category label attached to markets and events. ID arrives as a
// JSON string or number upstream and is kept in its decimal string form.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// RawMarket is a market record as published by the market source. Outcomes,
// OutcomePrices and ClobTokenIDs are JSON-encoded string arrays and are only
// decoded during normalization.
type RawMarket struct {
	ID                 string
	Question           string
	Slug               string
	ConditionID        string
	Outcomes           string
	OutcomePrices      string
	ClobTokenIDs       string
	Volume             string
	Volume24hr         string
	Liquidity          string
	StartDate          string
	EndDate            string
	Image              string
	EnableOrderBook    bool
	Active             bool
	Closed             bool
	Description        string
	ResolutionSource   string
	ResolutionCriteria string
	Tags               []Tag
	EventTitle         string
	EventIDs           []string
}

// RawEvent groups related markets under a shared title, date range and tags.
type RawEvent struct {
	ID          string
	Title       string
	Slug        string
	Description string
	StartDate   string
	EndDate     string
	Tags        []Tag
	Markets     []RawMarket
	Active      bool
	Closed      bool
}

// OutcomeWithPrice is one decoded outcome label with its display and raw
// probability.
type OutcomeWithPrice struct {
	Outcome  string  `json:"outcome"`
	Price    string  `json:"price"`
	RawPrice float64 `json:"rawPrice"`
}

// ProcessedMarket is the normalized market shape served to clients.
type ProcessedMarket struct {
	ID              string             `json:"id"`
	Question        string             `json:"question"`
	Slug            string             `json:"slug"`
	ConditionID     string             `json:"conditionId"`
	Volume          string             `json:"volume"`
	Volume24hr      string             `json:"volume24hr"`
	Liquidity       string             `json:"liquidity"`
	StartDate       string             `json:"startDate,omitempty"`
	EndDate         string             `json:"endDate,omitempty"`
	Image           string             `json:"image,omitempty"`
	EnableOrderBook bool               `json:"enableOrderBook"`
	Active          bool               `json:"active"`
	Closed          bool               `json:"closed"`
	Description     string             `json:"description,omitempty"`
	EventTitle      string             `json:"eventTitle,omitempty"`
	Tags            []Tag              `json:"tags"`
	Outcomes        []OutcomeWithPrice `json:"outcomes"`
	YesPrice        *float64           `json:"yesPrice"`
	NoPrice         *float64           `json:"noPrice"`
	TokenIDs        []string           `json:"tokenIds"`

	// Carried through for the detail view; not part of the list payload.
	ResolutionSource   string   `json:"-"`
	ResolutionCriteria string   `json:"-"`
	EventIDs           []string `json:"-"`
}

// MarketDetails is a processed market enriched for the single-market view.
type MarketDetails struct {
	ProcessedMarket
	ResolutionSource   string       `json:"resolutionSource,omitempty"`
	ResolutionCriteria string       `json:"resolutionCriteria,omitempty"`
	PriceHistory       *PriceHistory `json:"priceHistory,omitempty"`
	OrderBook          *OrderBook    `json:"orderBook,omitempty"`
}

// DashboardView is a filtered, limited projection of the current market
// snapshot together with refresh status.
type DashboardView struct {
	Markets     []ProcessedMarket `json:"markets"`
	Filter      string            `json:"filter"`
	Limit       int               `json:"limit"`
	Total       int               `json:"total"`
	Pending     bool              `json:"pending"`
	Error       string            `json:"error"`
	LastUpdated *time.Time        `json:"lastUpdated"`
}
