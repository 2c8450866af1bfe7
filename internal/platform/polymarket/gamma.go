package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and event metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
// A non-positive timeout falls back to 30s.
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// MarketQuery selects markets from the /markets collection.
type MarketQuery struct {
	// OpenOnly restricts to active=true&closed=false.
	OpenOnly  bool
	Limit     int
	Order     string
	Ascending bool
	ID        string
}

func (q MarketQuery) values() url.Values {
	params := url.Values{}
	if q.OpenOnly {
		params.Set("active", "true")
		params.Set("closed", "false")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Order != "" {
		params.Set("order", q.Order)
		params.Set("ascending", strconv.FormatBool(q.Ascending))
	}
	if q.ID != "" {
		params.Set("id", q.ID)
	}
	return params
}

// EventQuery selects events from the /events collection.
type EventQuery struct {
	OpenOnly    bool
	Limit       int
	ID          string
	ConditionID string
}

func (q EventQuery) values() url.Values {
	params := url.Values{}
	if q.OpenOnly {
		params.Set("active", "true")
		params.Set("closed", "false")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.ID != "" {
		params.Set("id", q.ID)
	}
	if q.ConditionID != "" {
		params.Set("condition_id", q.ConditionID)
	}
	return params
}

// ListMarkets returns markets matching q.
func (g *GammaClient) ListMarkets(ctx context.Context, q MarketQuery) ([]domain.RawMarket, error) {
	path := "/markets?" + q.values().Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.RawMarket, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomain())
	}

	return markets, nil
}

// GetMarket returns a single market by its ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.RawMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	if apiMarket.ID == "" {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, domain.ErrNotFound)
	}

	return apiMarket.ToDomain(), nil
}

// ListEvents returns events matching q, each with its nested markets.
func (g *GammaClient) ListEvents(ctx context.Context, q EventQuery) ([]domain.RawEvent, error) {
	path := "/events?" + q.values().Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list events: %w", err)
	}

	var apiEvents []APIEvent
	if err := json.Unmarshal(body, &apiEvents); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}

	events := make([]domain.RawEvent, 0, len(apiEvents))
	for i := range apiEvents {
		events = append(events, apiEvents[i].ToDomain())
	}

	return events, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	return getJSON(ctx, g.httpClient, g.baseURL+path)
}

// getJSON performs a GET with an Accept: application/json header and maps
// non-2xx responses to domain errors.
func getJSON(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
