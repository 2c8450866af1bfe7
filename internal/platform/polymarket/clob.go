package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// ClobClient is the read-only REST client for the Polymarket CLOB (Central
// Limit Order Book) API: price history and order-book depth.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, timeout time.Duration) *ClobClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClobClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PriceHistory returns the raw samples for tokenID between startTs and endTs
// (unix seconds) at the given fidelity in minutes. Aliased field names are
// preserved; callers reconcile them.
func (c *ClobClient) PriceHistory(ctx context.Context, tokenID string, startTs, endTs int64, fidelity int) ([]domain.RawPricePoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("startTs", strconv.FormatInt(startTs, 10))
	params.Set("endTs", strconv.FormatInt(endTs, 10))
	params.Set("fidelity", strconv.Itoa(fidelity))

	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/prices-history?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: prices history: %w", err)
	}

	points, err := decodePriceHistory(body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode prices history: %w", err)
	}

	out := make([]domain.RawPricePoint, 0, len(points))
	for _, p := range points {
		out = append(out, p.ToDomain())
	}
	return out, nil
}

// decodePriceHistory accepts either a bare array of samples or an object
// with a "history" array.
func decodePriceHistory(body []byte) ([]APIPricePoint, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var points []APIPricePoint
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, err
		}
		return points, nil
	}
	var wrapped APIPriceHistory
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.History, nil
}

// OrderBook returns the current depth for tokenID.
func (c *ClobClient) OrderBook(ctx context.Context, tokenID string) (domain.RawOrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/book?"+params.Encode())
	if err != nil {
		return domain.RawOrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.RawOrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	out := book.ToDomain()
	if out.AssetID == "" {
		out.AssetID = tokenID
	}
	return out, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, statusCode, bodyStr)
	}
}
