package market

import (
	"encoding/json"
	"strconv"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// Normalize converts a raw market into its processed form. It never fails:
// undecodable outcome or token arrays become empty lists.
func Normalize(raw domain.RawMarket) domain.ProcessedMarket {
	outcomes := ParseOutcomes(raw.Outcomes, raw.OutcomePrices)

	tags := raw.Tags
	if tags == nil {
		tags = []domain.Tag{}
	}

	return domain.ProcessedMarket{
		ID:                 raw.ID,
		Question:           raw.Question,
		Slug:               raw.Slug,
		ConditionID:        raw.ConditionID,
		Volume:             raw.Volume,
		Volume24hr:         raw.Volume24hr,
		Liquidity:          raw.Liquidity,
		StartDate:          raw.StartDate,
		EndDate:            raw.EndDate,
		Image:              raw.Image,
		EnableOrderBook:    raw.EnableOrderBook,
		Active:             raw.Active,
		Closed:             raw.Closed,
		Description:        raw.Description,
		EventTitle:         raw.EventTitle,
		Tags:               tags,
		Outcomes:           outcomes,
		YesPrice:           priceOf(outcomes, "Yes"),
		NoPrice:            priceOf(outcomes, "No"),
		TokenIDs:           parseTokenIDs(raw.ClobTokenIDs),
		ResolutionSource:   raw.ResolutionSource,
		ResolutionCriteria: raw.ResolutionCriteria,
		EventIDs:           raw.EventIDs,
	}
}

// NormalizeAll normalizes every market, preserving order.
func NormalizeAll(raws []domain.RawMarket) []domain.ProcessedMarket {
	out := make([]domain.ProcessedMarket, 0, len(raws))
	for i := range raws {
		out = append(out, Normalize(raws[i]))
	}
	return out
}

// Denormalize re-encodes a processed market into raw shape. Normalizing the
// result yields the same outcomes, yes/no prices and token ids.
func Denormalize(pm domain.ProcessedMarket) domain.RawMarket {
	raw := domain.RawMarket{
		ID:                 pm.ID,
		Question:           pm.Question,
		Slug:               pm.Slug,
		ConditionID:        pm.ConditionID,
		Volume:             pm.Volume,
		Volume24hr:         pm.Volume24hr,
		Liquidity:          pm.Liquidity,
		StartDate:          pm.StartDate,
		EndDate:            pm.EndDate,
		Image:              pm.Image,
		EnableOrderBook:    pm.EnableOrderBook,
		Active:             pm.Active,
		Closed:             pm.Closed,
		Description:        pm.Description,
		EventTitle:         pm.EventTitle,
		Tags:               pm.Tags,
		ResolutionSource:   pm.ResolutionSource,
		ResolutionCriteria: pm.ResolutionCriteria,
		EventIDs:           pm.EventIDs,
	}

	if len(pm.Outcomes) > 0 {
		labels := make([]string, len(pm.Outcomes))
		prices := make([]string, len(pm.Outcomes))
		for i, o := range pm.Outcomes {
			labels[i] = o.Outcome
			prices[i] = strconv.FormatFloat(o.RawPrice, 'f', -1, 64)
		}
		raw.Outcomes = mustEncode(labels)
		raw.OutcomePrices = mustEncode(prices)
	}
	if len(pm.TokenIDs) > 0 {
		raw.ClobTokenIDs = mustEncode(pm.TokenIDs)
	}
	return raw
}

// priceOf returns the raw price of the first outcome labeled exactly label.
func priceOf(outcomes []domain.OutcomeWithPrice, label string) *float64 {
	for _, o := range outcomes {
		if o.Outcome == label {
			p := o.RawPrice
			return &p
		}
	}
	return nil
}

func parseTokenIDs(encoded string) []string {
	if encoded == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return []string{}
	}
	return ids
}

// mustEncode marshals a string slice; string slices always encode.
func mustEncode(v []string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
