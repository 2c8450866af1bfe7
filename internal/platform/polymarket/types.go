package polymarket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString accepts a JSON string or number and keeps the textual form.
// Gamma sends volume as a string on some endpoints and a number on others.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or numeric string. Anything else decodes
// to zero rather than failing the whole payload.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}

// flexFloats accepts a JSON array of numbers/strings, or the same array
// encoded as a JSON string.
type flexFloats []float64

func (f *flexFloats) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(s)
	}
	var items []flexFloat
	if err := json.Unmarshal(data, &items); err != nil {
		*f = nil
		return nil
	}
	out := make([]float64, len(items))
	for i, v := range items {
		out[i] = float64(v)
	}
	*f = out
	return nil
}

// flexUnix accepts unix seconds as a number or numeric string, or an
// RFC 3339 timestamp string.
type flexUnix int64

func (f *flexUnix) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*f = flexUnix(v)
		} else if fv, err := n.Float64(); err == nil {
			*f = flexUnix(int64(fv))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexUnix(v)
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*f = flexUnix(t.Unix())
	}
	return nil
}

// encodedArray holds a JSON array in its encoded string form. Gamma usually
// sends outcomes, outcomePrices and clobTokenIds as strings containing JSON;
// when a real array arrives instead it is re-encoded so downstream decoding
// sees one shape.
type encodedArray string

func (e *encodedArray) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = encodedArray(s)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*e = ""
		return nil
	}
	*e = encodedArray(bytes.TrimSpace(data))
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag as returned by the Gamma API.
type APITag struct {
	ID    flexString `json:"id"`
	Label string     `json:"label"`
	Slug  string     `json:"slug"`
}

// APIEventRef is the abbreviated event embedded in a market response.
type APIEventRef struct {
	ID    flexString `json:"id"`
	Title string     `json:"title"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID                 flexString    `json:"id"`
	Question           string        `json:"question"`
	ConditionID        string        `json:"conditionId"`
	Slug               string        `json:"slug"`
	Outcomes           encodedArray  `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices      encodedArray  `json:"outcomePrices"` // e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs       encodedArray  `json:"clobTokenIds"`  // e.g. "[\"123\",\"456\"]"
	Volume             flexString    `json:"volume"`
	Volume24hr         flexString    `json:"volume24hr"`
	Liquidity          flexString    `json:"liquidity"`
	StartDate          string        `json:"startDate"`
	EndDate            string        `json:"endDate"`
	Image              string        `json:"image"`
	EnableOrderBook    flexBool      `json:"enableOrderBook"`
	Active             flexBool      `json:"active"`
	Closed             flexBool      `json:"closed"`
	Description        string        `json:"description"`
	ResolutionSource   string        `json:"resolutionSource"`
	ResolutionCriteria string        `json:"resolutionCriteria"`
	Tags               []APITag      `json:"tags"`
	Events             []APIEventRef `json:"events"`
}

// ToDomain converts an APIMarket to a domain.RawMarket.
func (m *APIMarket) ToDomain() domain.RawMarket {
	out := domain.RawMarket{
		ID:                 string(m.ID),
		Question:           m.Question,
		Slug:               m.Slug,
		ConditionID:        m.ConditionID,
		Outcomes:           string(m.Outcomes),
		OutcomePrices:      string(m.OutcomePrices),
		ClobTokenIDs:       string(m.ClobTokenIDs),
		Volume:             string(m.Volume),
		Volume24hr:         string(m.Volume24hr),
		Liquidity:          string(m.Liquidity),
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		Image:              m.Image,
		EnableOrderBook:    bool(m.EnableOrderBook),
		Active:             bool(m.Active),
		Closed:             bool(m.Closed),
		Description:        m.Description,
		ResolutionSource:   m.ResolutionSource,
		ResolutionCriteria: m.ResolutionCriteria,
		Tags:               toDomainTags(m.Tags),
	}
	for _, e := range m.Events {
		if e.ID != "" {
			out.EventIDs = append(out.EventIDs, string(e.ID))
		}
		if out.EventTitle == "" {
			out.EventTitle = e.Title
		}
	}
	return out
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID          flexString  `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Active      flexBool    `json:"active"`
	Closed      flexBool    `json:"closed"`
	Tags        []APITag    `json:"tags"`
	Markets     []APIMarket `json:"markets"`
}

// ToDomain converts an APIEvent and its nested markets.
func (e *APIEvent) ToDomain() domain.RawEvent {
	out := domain.RawEvent{
		ID:          string(e.ID),
		Title:       e.Title,
		Slug:        e.Slug,
		Description: e.Description,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		Active:      bool(e.Active),
		Closed:      bool(e.Closed),
		Tags:        toDomainTags(e.Tags),
	}
	if len(e.Markets) > 0 {
		out.Markets = make([]domain.RawMarket, 0, len(e.Markets))
		for i := range e.Markets {
			out.Markets = append(out.Markets, e.Markets[i].ToDomain())
		}
	}
	return out
}

func toDomainTags(tags []APITag) []domain.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, domain.Tag{ID: string(t.ID), Label: t.Label, Slug: t.Slug})
	}
	return out
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPricePoint is one history sample. Field names vary by deployment, so
// every alias seen in the wild is accepted.
type APIPricePoint struct {
	T             flexUnix   `json:"t"`
	Timestamp     flexUnix   `json:"timestamp"`
	CreatedAt     flexUnix   `json:"createdAt"`
	P             flexFloat  `json:"p"`
	Price         flexFloat  `json:"price"`
	OutcomePrices flexFloats `json:"outcomePrices"`
}

// ToDomain converts the sample without resolving aliases.
func (p APIPricePoint) ToDomain() domain.RawPricePoint {
	return domain.RawPricePoint{
		T:             int64(p.T),
		Timestamp:     int64(p.Timestamp),
		CreatedAt:     int64(p.CreatedAt),
		P:             float64(p.P),
		Price:         float64(p.Price),
		OutcomePrices: []float64(p.OutcomePrices),
	}
}

// APIPriceHistory is the wrapped form of the prices-history response. Some
// deployments return the bare array instead.
type APIPriceHistory struct {
	History []APIPricePoint `json:"history"`
}

// APIBookLevel is a price level with numeric strings.
type APIBookLevel struct {
	Price flexString `json:"price"`
	Size  flexString `json:"size"`
}

// APIBook is the /book response.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Hash      string         `json:"hash"`
	Timestamp flexString     `json:"timestamp"`
}

// ToDomain converts the response to a domain.RawOrderBook.
func (b *APIBook) ToDomain() domain.RawOrderBook {
	return domain.RawOrderBook{
		AssetID: b.AssetID,
		Market:  b.Market,
		Bids:    toRawLevels(b.Bids),
		Asks:    toRawLevels(b.Asks),
	}
}

func toRawLevels(levels []APIBookLevel) []domain.RawBookLevel {
	out := make([]domain.RawBookLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.RawBookLevel{Price: string(l.Price), Size: string(l.Size)})
	}
	return out
}
