package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// maxAppendVibeRunes is the vibe length below which new vibes are appended.
const maxAppendVibeRunes = 400

// Catalog is the keyed place index of one merge pass. It is not safe for
// concurrent use and is rebuilt from empty on every pass.
type Catalog struct {
	index map[string]*domain.CanonicalPlace
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		index: make(map[string]*domain.CanonicalPlace),
	}
}

// Merge folds a draft into the catalog. The first draft for a key creates
// the entry; later drafts enrich it in place.
func (c *Catalog) Merge(draft domain.PlaceDraft) {
	key := draft.Key()

	existing, ok := c.index[key]
	if !ok {
		c.index[key] = newCanonicalPlace(draft)
		c.order = append(c.order, key)
		return
	}

	existing.Vibe = mergeVibe(existing.Vibe, draft.Vibe)
	existing.Tags = unionTags(existing.Tags, draft.Tags, domain.MaxPlaceTags)
	existing.Sources = append(existing.Sources, draft.Sources...)
	existing.MentionCount++
	if existing.MentionCount >= 2 {
		existing.Confidence = domain.ConfidenceHigh
	}
}

// Len returns the number of distinct places.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Places returns deep copies of the entries in first-seen order.
func (c *Catalog) Places() []*domain.CanonicalPlace {
	places := make([]*domain.CanonicalPlace, 0, len(c.order))
	for _, key := range c.order {
		places = append(places, c.index[key].Clone())
	}
	return places
}

// MergeAll builds a catalog from a batch of drafts.
func MergeAll(drafts []domain.PlaceDraft) *Catalog {
	catalog := NewCatalog()
	for _, d := range drafts {
		catalog.Merge(d)
	}
	return catalog
}

func newCanonicalPlace(draft domain.PlaceDraft) *domain.CanonicalPlace {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.City = strings.TrimSpace(draft.City)
	draft.Country = strings.TrimSpace(draft.Country)
	draft.Category = domain.NormalizeCategory(string(draft.Category))
	draft.Tags = unionTags(nil, draft.Tags, domain.MaxPlaceTags)
	draft.Sources = append([]domain.SourceRef(nil), draft.Sources...)
	if draft.Confidence == "" {
		draft.Confidence = domain.ConfidenceMedium
	}
	return &domain.CanonicalPlace{
		PlaceDraft:   draft,
		MentionCount: 1,
	}
}

// mergeVibe appends a new description while the existing one is short,
// otherwise keeps whichever is longer. Repeated descriptions are ignored.
func mergeVibe(existing, incoming string) string {
	if strings.Contains(strings.ToLower(existing), strings.ToLower(incoming)) {
		return existing
	}
	if utf8.RuneCountInString(existing) < maxAppendVibeRunes {
		return existing + " " + incoming
	}
	if utf8.RuneCountInString(incoming) > utf8.RuneCountInString(existing) {
		return incoming
	}
	return existing
}

// unionTags is an order-preserving set union, existing tags first.
func unionTags(existing, incoming []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, list := range [][]string{existing, incoming} {
		for _, tag := range list {
			if len(out) == limit {
				return out
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
