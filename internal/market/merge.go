package market

import (
	"slices"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// eventMeta is the subset of an event copied onto its member markets.
type eventMeta struct {
	id          string
	title       string
	description string
	startDate   string
	endDate     string
	tags        []domain.Tag
}

// Merge combines the flat market collection with the markets nested inside
// events into one list keyed by market id.
//
// Flat markets come first, in input order; a repeated flat id replaces the
// earlier record in place. Event metadata only fills fields the flat record
// left empty. Markets that appear only inside events are appended afterwards
// with the event's dates, tags, title and description taking precedence.
func Merge(markets []domain.RawMarket, events []domain.RawEvent) []domain.RawMarket {
	meta := make(map[string]eventMeta)
	for _, e := range events {
		m := eventMeta{
			id:          e.ID,
			title:       e.Title,
			description: e.Description,
			startDate:   e.StartDate,
			endDate:     e.EndDate,
			tags:        e.Tags,
		}
		for _, nm := range e.Markets {
			if nm.ID != "" {
				meta[nm.ID] = m
			}
		}
	}

	order := make([]string, 0, len(markets))
	byID := make(map[string]domain.RawMarket, len(markets))

	for _, m := range markets {
		if m.ID == "" {
			continue
		}
		if em, ok := meta[m.ID]; ok {
			m = fillFromEvent(m, em)
		}
		if _, seen := byID[m.ID]; !seen {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}

	for _, e := range events {
		for _, nm := range e.Markets {
			if nm.ID == "" {
				continue
			}
			if _, seen := byID[nm.ID]; seen {
				continue
			}
			byID[nm.ID] = preferEvent(nm, e)
			order = append(order, nm.ID)
		}
	}

	out := make([]domain.RawMarket, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// fillFromEvent copies event metadata into fields m left empty.
func fillFromEvent(m domain.RawMarket, em eventMeta) domain.RawMarket {
	if m.StartDate == "" {
		m.StartDate = em.startDate
	}
	if m.EndDate == "" {
		m.EndDate = em.endDate
	}
	if len(m.Tags) == 0 && len(em.tags) > 0 {
		m.Tags = slices.Clone(em.tags)
	}
	if m.EventTitle == "" {
		m.EventTitle = em.title
	}
	if m.Description == "" {
		m.Description = em.description
	}
	if len(m.EventIDs) == 0 && em.id != "" {
		m.EventIDs = []string{em.id}
	}
	return m
}

// preferEvent overrides m with the event's non-empty metadata.
func preferEvent(m domain.RawMarket, e domain.RawEvent) domain.RawMarket {
	if e.StartDate != "" {
		m.StartDate = e.StartDate
	}
	if e.EndDate != "" {
		m.EndDate = e.EndDate
	}
	if len(e.Tags) > 0 {
		m.Tags = slices.Clone(e.Tags)
	}
	if e.Title != "" {
		m.EventTitle = e.Title
	}
	if e.Description != "" {
		m.Description = e.Description
	}
	if len(m.EventIDs) == 0 && e.ID != "" {
		m.EventIDs = []string{e.ID}
	}
	return m
}
