// Package timeseries fetches price history for a trading token over a named
// period, splitting long windows into upstream-sized chunks, fetching the
// chunks concurrently and reconciling the results into one ordered series.
package timeseries

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

const (
	secondsPerDay = 86400
	// fallbackPoints is the size of the synthetic series.
	fallbackPoints = 50
)

// Source returns raw price samples for one token and window.
type Source interface {
	PriceHistory(ctx context.Context, tokenID string, startTs, endTs int64, fidelity int) ([]domain.RawPricePoint, error)
}

// Period names a history range requested by clients.
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	PeriodAll Period = "all"
)

// Plan is the fetch plan for a period: Fidelity is the resolution in
// minutes, TotalDays the window length and ChunkDays the longest window a
// single upstream request may cover.
type Plan struct {
	Fidelity  int
	TotalDays int
	ChunkDays int
}

var plans = map[Period]Plan{
	Period24h: {Fidelity: 60, TotalDays: 1, ChunkDays: 1},
	Period7d:  {Fidelity: 1440, TotalDays: 7, ChunkDays: 14},
	Period30d: {Fidelity: 1440, TotalDays: 30, ChunkDays: 14},
	PeriodAll: {Fidelity: 1440, TotalDays: 60, ChunkDays: 14},
}

// ParsePeriod returns the period and its plan. Unknown names resolve to 7d.
func ParsePeriod(s string) (Period, Plan) {
	p := Period(s)
	if plan, ok := plans[p]; ok {
		return p, plan
	}
	return Period7d, plans[Period7d]
}

// Window is a closed [Start, End] range in unix seconds.
type Window struct {
	Start int64
	End   int64
}

// Windows partitions [start, end] into consecutive windows of at most
// chunkDays. Adjacent windows share their boundary instant; there are no
// gaps. A non-positive chunk size yields the single whole window.
func Windows(start, end int64, chunkDays int) []Window {
	if end <= start {
		return []Window{{Start: start, End: end}}
	}
	step := int64(chunkDays) * secondsPerDay
	if step <= 0 {
		return []Window{{Start: start, End: end}}
	}
	var out []Window
	for cursor := start; cursor < end; cursor += step {
		out = append(out, Window{Start: cursor, End: min(cursor+step, end)})
	}
	return out
}

// Chunker fetches and reconciles price history.
type Chunker struct {
	source       Source
	chunkTimeout time.Duration
	logger       *slog.Logger

	now    func() time.Time
	jitter func() float64
}

// NewChunker creates a Chunker. chunkTimeout bounds every individual
// upstream request; zero disables the per-chunk bound.
func NewChunker(source Source, chunkTimeout time.Duration, logger *slog.Logger) *Chunker {
	return &Chunker{
		source:       source,
		chunkTimeout: chunkTimeout,
		logger:       logger.With(slog.String("component", "timeseries")),
		now:          time.Now,
		jitter:       rand.Float64,
	}
}

// Fetch returns the reconciled series for tokenID over the named period.
//
// Chunk failures are logged and contribute nothing. When no usable point
// survives, a synthetic series is returned with Synthetic set. An empty
// tokenID yields an empty series. The only error returned is the caller's
// context error.
func (c *Chunker) Fetch(ctx context.Context, tokenID, period string) (domain.PriceHistory, error) {
	p, plan := ParsePeriod(period)
	out := domain.PriceHistory{
		TokenID:  tokenID,
		Period:   string(p),
		Fidelity: plan.Fidelity,
		Points:   []domain.PricePoint{},
	}
	if tokenID == "" {
		return out, nil
	}

	end := c.now().Unix()
	start := end - int64(plan.TotalDays)*secondsPerDay

	var windows []Window
	if plan.TotalDays <= plan.ChunkDays {
		windows = []Window{{Start: start, End: end}}
	} else {
		windows = Windows(start, end, plan.ChunkDays)
	}

	results := make([][]domain.RawPricePoint, len(windows))
	var g errgroup.Group
	for i, w := range windows {
		g.Go(func() error {
			results[i] = c.fetchWindow(ctx, tokenID, w, plan.Fidelity)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}

	out.Points = Merge(results)
	if len(out.Points) == 0 {
		c.logger.WarnContext(ctx, "no price history returned, using synthetic series",
			slog.String("token_id", tokenID),
			slog.String("period", string(p)),
		)
		out.Points = c.synthesize(end, plan.TotalDays)
		out.Synthetic = true
	}
	return out, nil
}

// fetchWindow runs one bounded upstream request and swallows its failure.
func (c *Chunker) fetchWindow(ctx context.Context, tokenID string, w Window, fidelity int) []domain.RawPricePoint {
	if c.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.chunkTimeout)
		defer cancel()
	}
	points, err := c.source.PriceHistory(ctx, tokenID, w.Start, w.End, fidelity)
	if err != nil {
		c.logger.WarnContext(ctx, "price history chunk failed",
			slog.String("token_id", tokenID),
			slog.Int64("start_ts", w.Start),
			slog.Int64("end_ts", w.End),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return points
}

// Merge reconciles chunk results in chunk order: points without a timestamp
// or with a non-positive price are dropped, the first occurrence of each
// timestamp wins, and the result is sorted ascending.
func Merge(chunks [][]domain.RawPricePoint) []domain.PricePoint {
	seen := make(map[int64]struct{})
	out := []domain.PricePoint{}
	for _, chunk := range chunks {
		for _, raw := range chunk {
			p, ok := ReconcilePoint(raw)
			if !ok || p.P <= 0 {
				continue
			}
			if _, dup := seen[p.T]; dup {
				continue
			}
			seen[p.T] = struct{}{}
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.PricePoint) int {
		switch {
		case a.T < b.T:
			return -1
		case a.T > b.T:
			return 1
		default:
			return 0
		}
	})
	return out
}

// ReconcilePoint resolves field aliases. Timestamp precedence is
// t > timestamp > createdAt; price precedence is p > price >
// outcomePrices[0]. Zero values fall through to the next alias. ok is false
// when no timestamp is present.
func ReconcilePoint(raw domain.RawPricePoint) (domain.PricePoint, bool) {
	var p domain.PricePoint
	switch {
	case raw.T != 0:
		p.T = raw.T
	case raw.Timestamp != 0:
		p.T = raw.Timestamp
	default:
		p.T = raw.CreatedAt
	}
	switch {
	case raw.P != 0:
		p.P = raw.P
	case raw.Price != 0:
		p.P = raw.Price
	case len(raw.OutcomePrices) > 0:
		p.P = raw.OutcomePrices[0]
	}
	return p, p.T != 0
}

// synthesize builds the placeholder series: fallbackPoints strictly
// increasing timestamps ending at end, prices 0.5 +/- 0.05 clamped to
// [0.1, 0.9].
func (c *Chunker) synthesize(end int64, totalDays int) []domain.PricePoint {
	span := int64(totalDays) * secondsPerDay
	step := max(span/fallbackPoints, 1)

	out := make([]domain.PricePoint, fallbackPoints)
	for i := range fallbackPoints {
		price := 0.5 + (c.jitter()-0.5)*0.1
		out[i] = domain.PricePoint{
			T: end - step*int64(fallbackPoints-1-i),
			P: min(max(price, 0.1), 0.9),
		}
	}
	return out
}
