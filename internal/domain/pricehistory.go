package domain

// PricePoint is one reconciled observation: T is a unix timestamp in
// seconds, P a probability in (0, 1].
type PricePoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// PriceHistory is an ordered series for one token over one period.
// Points are sorted by T ascending with no duplicate timestamps. Synthetic
// is set when the series was generated locally because the upstream
// returned nothing usable.
type PriceHistory struct {
	TokenID   string       `json:"tokenId"`
	Period    string       `json:"period"`
	Fidelity  int          `json:"fidelity"`
	Points    []PricePoint `json:"points"`
	Synthetic bool         `json:"synthetic"`
}

// RawPricePoint is a price observation as delivered by the history source.
// Different deployments name the same fields differently; every alias is
// kept and resolved later.
type RawPricePoint struct {
	T             int64
	Timestamp     int64
	CreatedAt     int64
	P             float64
	Price         float64
	OutcomePrices []float64
}
