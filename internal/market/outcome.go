// Package market turns raw market and event records into the processed
// shape served to clients: outcome decoding, normalization, the market/event
// merge and the dashboard filters. Everything here is pure and never fails;
// malformed input degrades to empty values.
package market

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ParseOutcomes pairs the JSON-encoded outcome labels with the JSON-encoded
// prices. An empty, undecodable or length-mismatched input on either side
// yields an empty (non-nil) list. A price that is not numeric becomes 0.
func ParseOutcomes(labels, prices string) []domain.OutcomeWithPrice {
	out := []domain.OutcomeWithPrice{}
	if labels == "" || prices == "" {
		return out
	}

	var names []string
	if err := json.Unmarshal([]byte(labels), &names); err != nil {
		return out
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(prices), &raw); err != nil {
		return out
	}
	if len(names) != len(raw) {
		return out
	}

	for i, name := range names {
		p := parsePrice(raw[i])
		out = append(out, domain.OutcomeWithPrice{
			Outcome:  name,
			Price:    formatPercent(p),
			RawPrice: p.InexactFloat64(),
		})
	}
	return out
}

// parsePrice reads a price sent either as a JSON string or a number.
func parsePrice(raw json.RawMessage) decimal.Decimal {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return decimal.Zero
		}
		s = n.String()
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// formatPercent renders a probability as a whole percentage, rounding half
// away from zero: 0.655 -> "66%".
func formatPercent(p decimal.Decimal) string {
	return p.Mul(hundred).Round(0).String() + "%"
}
