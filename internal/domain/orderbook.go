package domain

import "time"

// BookLevel is a single price+size entry in an order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a depth snapshot for one token. Bids are sorted by price
// descending, asks ascending. Synthetic marks a locally generated book used
// when the upstream was unavailable.
type OrderBook struct {
	TokenID   string      `json:"tokenId"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Synthetic bool        `json:"synthetic"`
	FetchedAt time.Time   `json:"fetchedAt"`
}

// BestBid returns the highest bid, or 0 when the side is empty.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask, or 0 when the side is empty.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// RawBookLevel is a level as returned by the CLOB, with numeric strings.
type RawBookLevel struct {
	Price string
	Size  string
}

// RawOrderBook is the unparsed CLOB response for one token.
type RawOrderBook struct {
	AssetID string
	Market  string
	Bids    []RawBookLevel
	Asks    []RawBookLevel
}
