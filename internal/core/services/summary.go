package services

import (
	"sort"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// Summary limits
const (
	summaryCityLimit    = 15
	summaryTagLimit     = 10
	summaryMentionLimit = 10
	summarySampleLimit  = 3
)

// CountEntry is one row of a breakdown.
type CountEntry struct {
	Key   string
	Count int
}

// CatalogSummary aggregates a catalog for display.
type CatalogSummary struct {
	TotalPlaces  int
	ByCategory   []CountEntry
	ByCity       []CountEntry // keyed "City, Country"
	TopTags      []CountEntry
	MultiMention []*domain.CanonicalPlace
	Samples      []*domain.CanonicalPlace
}

// Summarize builds the breakdowns shown after a harvest. Breakdowns are
// sorted by count, highest first, with ties broken by key.
func Summarize(places []*domain.CanonicalPlace) *CatalogSummary {
	categories := make(map[string]int)
	cities := make(map[string]int)
	tags := make(map[string]int)
	var multi []*domain.CanonicalPlace

	for _, p := range places {
		categories[string(p.Category)]++
		cities[p.City+", "+p.Country]++
		for _, tag := range p.Tags {
			tags[tag]++
		}
		if p.MentionCount > 1 {
			multi = append(multi, p)
		}
	}

	sort.SliceStable(multi, func(i, j int) bool {
		return multi[i].MentionCount > multi[j].MentionCount
	})

	samples := places
	if len(samples) > summarySampleLimit {
		samples = samples[:summarySampleLimit]
	}

	return &CatalogSummary{
		TotalPlaces:  len(places),
		ByCategory:   rankCounts(categories, 0),
		ByCity:       rankCounts(cities, summaryCityLimit),
		TopTags:      rankCounts(tags, summaryTagLimit),
		MultiMention: truncatePlaces(multi, summaryMentionLimit),
		Samples:      samples,
	}
}

func rankCounts(counts map[string]int, limit int) []CountEntry {
	entries := make([]CountEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, CountEntry{Key: k, Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func truncatePlaces(places []*domain.CanonicalPlace, n int) []*domain.CanonicalPlace {
	if len(places) > n {
		return places[:n]
	}
	return places
}
