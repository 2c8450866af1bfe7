package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/betwixt/internal/domain"
	"github.com/alanyoungcy/betwixt/internal/market"
)

const (
	insightSystemPrompt = "You are a concise prediction market analyst. Respond with well-structured markdown."
	noInsightText       = "No insight generated."
	insightHistoryTail  = 200
	insightDefaultRange = "7d"
)

// Generator produces text from a system and a user prompt.
type Generator interface {
	Configured() bool
	Complete(ctx context.Context, system, user string) (string, error)
}

// MarketReader is the part of MarketService an insight for a known market
// needs.
type MarketReader interface {
	Details(ctx context.Context, id, period string) (domain.MarketDetails, error)
	OrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error)
}

// InsightService generates and caches market commentary.
type InsightService struct {
	gen     Generator
	cache   domain.InsightCache
	markets MarketReader
	logger  *slog.Logger
	now     func() time.Time
}

// NewInsightService creates an InsightService. markets may be nil, in which
// case ForMarket is unavailable.
func NewInsightService(gen Generator, cache domain.InsightCache, markets MarketReader, logger *slog.Logger) *InsightService {
	return &InsightService{
		gen:     gen,
		cache:   cache,
		markets: markets,
		logger:  logger.With(slog.String("component", "insight_service")),
		now:     time.Now,
	}
}

// Generate returns the cached insight for req.MarketID if one is live, and
// otherwise asks the generator and caches the answer.
func (s *InsightService) Generate(ctx context.Context, req domain.InsightRequest) (domain.Insight, error) {
	if strings.TrimSpace(req.MarketID) == "" || strings.TrimSpace(req.Question) == "" {
		return domain.Insight{}, fmt.Errorf("insight_service: marketId and question are required: %w", domain.ErrInvalidInput)
	}
	if s.gen == nil || !s.gen.Configured() {
		return domain.Insight{}, fmt.Errorf("insight_service: generator: %w", domain.ErrNotConfigured)
	}

	if text, ok, err := s.cache.Get(ctx, req.MarketID); err != nil {
		s.logger.WarnContext(ctx, "insight cache read failed",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
	} else if ok {
		return domain.Insight{MarketID: req.MarketID, Text: text, Cached: true, GeneratedAt: s.now()}, nil
	}

	requestID := uuid.NewString()
	start := s.now()
	text, err := s.gen.Complete(ctx, insightSystemPrompt, BuildPrompt(req, s.now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "insight generation failed",
			slog.String("request_id", requestID),
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrUpstream) {
			return domain.Insight{}, fmt.Errorf("insight_service: generate %s: %w", req.MarketID, err)
		}
		return domain.Insight{}, fmt.Errorf("insight_service: generate %s: %w: %w", req.MarketID, domain.ErrUpstream, err)
	}
	if strings.TrimSpace(text) == "" {
		text = noInsightText
	}

	if err := s.cache.Set(ctx, req.MarketID, text); err != nil {
		s.logger.WarnContext(ctx, "insight cache write failed",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "insight generated",
		slog.String("request_id", requestID),
		slog.String("market_id", req.MarketID),
		slog.Duration("elapsed", s.now().Sub(start)),
	)
	return domain.Insight{MarketID: req.MarketID, Text: text, GeneratedAt: s.now()}, nil
}

// ForMarket builds the summary server-side from the market's details, 7d
// history and first-outcome book, then generates the insight.
func (s *InsightService) ForMarket(ctx context.Context, id string) (domain.Insight, error) {
	if s.markets == nil {
		return domain.Insight{}, fmt.Errorf("insight_service: market reader: %w", domain.ErrNotConfigured)
	}
	details, err := s.markets.Details(ctx, id, insightDefaultRange)
	if err != nil {
		return domain.Insight{}, err
	}

	book := details.OrderBook
	if book == nil && len(details.TokenIDs) > 0 {
		book, err = s.markets.OrderBook(ctx, details.TokenIDs[0])
		if err != nil {
			s.logger.WarnContext(ctx, "order book unavailable for insight",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			book = nil
		}
	}
	return s.Generate(ctx, Summarize(details, details.PriceHistory, book))
}

// Summarize builds an InsightRequest from a market's details, optional
// history and optional book. Only the most recent points are kept.
func Summarize(details domain.MarketDetails, history *domain.PriceHistory, book *domain.OrderBook) domain.InsightRequest {
	req := domain.InsightRequest{
		MarketID:    details.ID,
		Question:    details.Question,
		Outcomes:    details.Outcomes,
		YesPrice:    details.YesPrice,
		NoPrice:     details.NoPrice,
		Volume24hr:  details.Volume24hr,
		Liquidity:   details.Liquidity,
		EndDate:     details.EndDate,
		Description: details.Description,
	}
	if history != nil && len(history.Points) > 0 {
		pts := history.Points
		if len(pts) > insightHistoryTail {
			pts = pts[len(pts)-insightHistoryTail:]
		}
		req.PriceHistory = append([]domain.PricePoint(nil), pts...)
	}
	if book != nil {
		req.OrderBookSummary = summarizeBook(*book)
	}
	return req
}

func summarizeBook(b domain.OrderBook) string {
	if len(b.Bids) == 0 && len(b.Asks) == 0 {
		return ""
	}
	var bidDepth, askDepth float64
	for _, l := range b.Bids {
		bidDepth += l.Size
	}
	for _, l := range b.Asks {
		askDepth += l.Size
	}
	parts := []string{
		fmt.Sprintf("best bid %.1f%% / best ask %.1f%%", b.BestBid()*100, b.BestAsk()*100),
	}
	if len(b.Bids) > 0 && len(b.Asks) > 0 {
		parts = append(parts, fmt.Sprintf("spread %.1f pts", (b.BestAsk()-b.BestBid())*100))
	}
	parts = append(parts, fmt.Sprintf("depth %.0f bid / %.0f ask shares", bidDepth, askDepth))
	if b.Synthetic {
		parts = append(parts, "(estimated)")
	}
	return strings.Join(parts, ", ")
}

// BuildPrompt renders the analyst prompt for req as of now.
func BuildPrompt(req domain.InsightRequest, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are a prediction market analyst for Betwixt, a Polymarket dashboard. ")
	sb.WriteString("Analyze this market and provide concise, actionable insights. Be direct and data-driven.\n\n")

	fmt.Fprintf(&sb, "MARKET: %q\n", req.Question)
	if req.Description != "" {
		fmt.Fprintf(&sb, "DESCRIPTION: %s\n", req.Description)
	}
	fmt.Fprintf(&sb, "CURRENT PRICES: %s\n", outcomesText(req.Outcomes))
	if req.YesPrice != nil && req.NoPrice != nil {
		fmt.Fprintf(&sb, "Yes: %.1f%% | No: %.1f%%\n", *req.YesPrice*100, *req.NoPrice*100)
	}
	fmt.Fprintf(&sb, "24H VOLUME: $%s\n", orZero(req.Volume24hr))
	fmt.Fprintf(&sb, "LIQUIDITY: $%s\n", orZero(req.Liquidity))
	if t := TrendText(req.PriceHistory); t != "" {
		sb.WriteString(t + "\n")
	}
	if t := TimeRemainingText(req.EndDate, now); t != "" {
		sb.WriteString(t + "\n")
	}
	if req.OrderBookSummary != "" {
		fmt.Fprintf(&sb, "ORDER BOOK: %s\n", req.OrderBookSummary)
	}

	sb.WriteString(`
Provide your analysis in this exact format (use markdown):

**Market Summary**
One short paragraph explaining what this market is predicting in plain English.

**Trend Analysis**
2-3 sentences analyzing recent price movement, momentum, and what it signals about market sentiment.

**Key Signals**
- Bullet point 1 (most important signal)
- Bullet point 2
- Bullet point 3

**Outlook**
One sentence summarizing the overall market stance (bullish/bearish/neutral) with brief reasoning.

Keep the total response under 200 words. Be specific with numbers. Do not give financial advice.`)
	return sb.String()
}

// TrendText describes the move from the first to the last point, or ""
// with fewer than two points.
func TrendText(points []domain.PricePoint) string {
	if len(points) < 2 {
		return ""
	}
	first, last := points[0], points[len(points)-1]
	direction := "flat"
	switch {
	case last.P > first.P:
		direction = "up"
	case last.P < first.P:
		direction = "down"
	}
	return fmt.Sprintf("Price trend: %s %.1f%% (from %.1f%% to %.1f%%) over %d data points.",
		direction, (last.P-first.P)*100, first.P*100, last.P*100, len(points))
}

// TimeRemainingText reports whole days until endDate, or that the market
// has ended. Unparseable or empty dates yield "".
func TimeRemainingText(endDate string, now time.Time) string {
	end, ok := market.ParseDate(endDate)
	if !ok {
		return ""
	}
	remaining := end.Sub(now)
	if remaining <= 0 {
		return "Market has ended."
	}
	days := int(math.Floor(remaining.Hours() / 24))
	return fmt.Sprintf("Time remaining: %d days until resolution.", days)
}

func outcomesText(outcomes []domain.OutcomeWithPrice) string {
	if len(outcomes) == 0 {
		return "N/A"
	}
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = o.Outcome + ": " + o.Price
	}
	return strings.Join(parts, ", ")
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
