package market

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// Filter selects and orders the dashboard view.
type Filter string

const (
	FilterTrending    Filter = "trending"
	FilterRecent      Filter = "recent"
	FilterClosingSoon Filter = "closing-soon"
	FilterCrypto      Filter = "crypto"
	FilterPolitics    Filter = "politics"
	FilterSports      Filter = "sports"
)

// category describes how tag data identifies a topical filter.
type category struct {
	keywords []string
	slug     string
	tagID    int
}

var categories = map[Filter]category{
	FilterCrypto: {
		keywords: []string{"crypto", "bitcoin", "ethereum"},
		slug:     "crypto",
		tagID:    21,
	},
	FilterPolitics: {
		keywords: []string{"politics", "election", "president", "trump", "biden"},
		slug:     "politics",
		tagID:    2,
	},
	FilterSports: {
		keywords: []string{"sports", "nba", "nfl", "football", "basketball", "baseball", "soccer"},
		slug:     "sports",
		tagID:    100215,
	},
}

// ParseFilter maps a request value to a Filter. Unknown values select
// trending.
func ParseFilter(s string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterTrending, FilterRecent, FilterClosingSoon, FilterCrypto, FilterPolitics, FilterSports:
		return f
	default:
		return FilterTrending
	}
}

// Apply returns a new slice holding the view of markets for filter f,
// truncated to limit (limit <= 0 keeps everything). The input is never
// modified. Sorting is stable, so ties keep the aggregated order.
func Apply(markets []domain.ProcessedMarket, f Filter, limit int) []domain.ProcessedMarket {
	var out []domain.ProcessedMarket

	switch f {
	case FilterRecent:
		out = slices.Clone(markets)
		slices.SortStableFunc(out, func(a, b domain.ProcessedMarket) int {
			return cmp.Compare(startKey(b), startKey(a))
		})
	case FilterClosingSoon:
		out = slices.Clone(markets)
		slices.SortStableFunc(out, func(a, b domain.ProcessedMarket) int {
			return cmp.Compare(endKey(a), endKey(b))
		})
	case FilterCrypto, FilterPolitics, FilterSports:
		c := categories[f]
		out = make([]domain.ProcessedMarket, 0, len(markets))
		for _, m := range markets {
			if c.matches(m.Tags) {
				out = append(out, m)
			}
		}
	default:
		out = slices.Clone(markets)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c category) matches(tags []domain.Tag) bool {
	for _, t := range tags {
		label := strings.ToLower(t.Label)
		for _, kw := range c.keywords {
			if strings.Contains(label, kw) {
				return true
			}
		}
		if strings.Contains(strings.ToLower(t.Slug), c.slug) {
			return true
		}
		if id, err := strconv.Atoi(strings.TrimSpace(t.ID)); err == nil && id == c.tagID {
			return true
		}
	}
	return false
}

// startKey is the start date in unix milliseconds; missing dates sort as
// the epoch.
func startKey(m domain.ProcessedMarket) int64 {
	t, ok := ParseDate(m.StartDate)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

// endKey is the end date in unix milliseconds; missing dates sort last.
func endKey(m domain.ProcessedMarket) float64 {
	t, ok := ParseDate(m.EndDate)
	if !ok {
		return math.Inf(1)
	}
	return float64(t.UnixMilli())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseDate accepts the date layouts seen upstream and reports false for
// empty or unparseable input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
