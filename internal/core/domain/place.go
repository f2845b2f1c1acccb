package domain

import (
	"strings"
)

// Category is a normalised venue type.
type Category string

// Categories accepted in the catalog. Anything else normalises to CategoryActivity.
const (
	CategoryCafe         Category = "cafe"
	CategoryRestaurant   Category = "restaurant"
	CategoryBar          Category = "bar"
	CategoryShop         Category = "shop"
	CategoryMuseum       Category = "museum"
	CategoryPark         Category = "park"
	CategoryHotel        Category = "hotel"
	CategoryHostel       Category = "hostel"
	CategoryActivity     Category = "activity"
	CategoryNeighborhood Category = "neighborhood"
	CategoryMarket       Category = "market"
	CategoryStreetFood   Category = "street_food"
	CategoryClub         Category = "club"
	CategoryViewpoint    Category = "viewpoint"
	CategoryTemple       Category = "temple"
	CategoryBeach        Category = "beach"
	CategorySpa          Category = "spa"
	CategoryGallery      Category = "gallery"
	CategoryTheater      Category = "theater"
	CategoryLandmark     Category = "landmark"
)

// Categories lists every valid category in prompt order.
var Categories = []Category{
	CategoryCafe, CategoryRestaurant, CategoryBar, CategoryShop, CategoryMuseum,
	CategoryPark, CategoryHotel, CategoryHostel, CategoryActivity, CategoryNeighborhood,
	CategoryMarket, CategoryStreetFood, CategoryClub, CategoryViewpoint, CategoryTemple,
	CategoryBeach, CategorySpa, CategoryGallery, CategoryTheater, CategoryLandmark,
}

var categorySet = func() map[Category]struct{} {
	m := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

var categorySynonyms = map[string]Category{
	"restaurants":  CategoryRestaurant,
	"bistro":       CategoryRestaurant,
	"bars":         CategoryBar,
	"pub":          CategoryBar,
	"lounge":       CategoryBar,
	"cafes":        CategoryCafe,
	"coffee_shop":  CategoryCafe,
	"coffee":       CategoryCafe,
	"food_stall":   CategoryStreetFood,
	"night_market": CategoryMarket,
	"shrine":       CategoryTemple,
	"district":     CategoryNeighborhood,
	"area":         CategoryNeighborhood,
	"attraction":   CategoryLandmark,
	"sight":        CategoryLandmark,
}

// IsValid reports whether c is one of the catalog categories.
func (c Category) IsValid() bool {
	_, ok := categorySet[c]
	return ok
}

// NormalizeCategory maps any input onto the category enumeration.
// The mapping is total: unknown input yields CategoryActivity.
func NormalizeCategory(raw string) Category {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	if c := Category(key); c.IsValid() {
		return c
	}
	if c, ok := categorySynonyms[key]; ok {
		return c
	}
	return CategoryActivity
}

// MaxDraftTags caps the tags on a single extracted draft.
const MaxDraftTags = 4

// MaxPlaceTags caps the tags on a merged catalog entry.
const MaxPlaceTags = 6

// Tags is the fixed tag vocabulary in prompt order.
var Tags = []string{
	"food", "coffee", "drinks", "nightlife", "cultural", "local", "hidden_gem",
	"budget", "splurge", "romantic", "solo", "instagram", "views", "chill",
	"lively", "historic", "art", "nature", "shopping", "late_night", "breakfast",
	"brunch", "lunch", "dinner", "dessert", "vegetarian", "vegan", "family",
	"outdoor", "indoor", "rooftop", "waterfront", "trendy", "traditional",
	"authentic", "touristy_but_worth_it",
}

var tagSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Tags))
	for _, t := range Tags {
		m[t] = struct{}{}
	}
	return m
}()

var defaultTags = map[Category][]string{
	CategoryCafe:         {"coffee", "chill"},
	CategoryRestaurant:   {"food", "local"},
	CategoryBar:          {"drinks", "nightlife"},
	CategoryClub:         {"nightlife", "lively"},
	CategoryStreetFood:   {"food", "budget", "local"},
	CategoryMarket:       {"shopping", "local"},
	CategoryTemple:       {"cultural", "historic"},
	CategoryMuseum:       {"cultural", "indoor"},
	CategoryPark:         {"nature", "outdoor"},
	CategoryViewpoint:    {"views", "instagram"},
	CategoryNeighborhood: {"local", "authentic"},
	CategoryBeach:        {"outdoor", "chill"},
}

// IsValidTag reports whether tag is in the vocabulary.
func IsValidTag(tag string) bool {
	_, ok := tagSet[tag]
	return ok
}

// DefaultTags returns the fallback tags for a category.
func DefaultTags(c Category) []string {
	if tags, ok := defaultTags[c]; ok {
		out := make([]string, len(tags))
		copy(out, tags)
		return out
	}
	return []string{"local"}
}

// NormalizeTags parses a comma separated tag list, keeps vocabulary members
// in their first-seen order and caps the result at MaxDraftTags. When nothing
// survives, the category defaults are returned.
func NormalizeTags(raw string, c Category) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), " ", "_")
		if !IsValidTag(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == MaxDraftTags {
			break
		}
	}
	if len(tags) == 0 {
		return DefaultTags(c)
	}
	return tags
}

// Confidence is the extractor's certainty about a place.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SourceRef attributes a place to the thread it was mentioned in.
type SourceRef struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Channel string `json:"subreddit"`
}

// PlaceDraft is one place mention extracted from a single document.
type PlaceDraft struct {
	Name       string      `json:"name"`
	City       string      `json:"city"`
	Country    string      `json:"country"`
	Category   Category    `json:"category"`
	Tags       []string    `json:"tags"`
	Vibe       string      `json:"vibe"`
	Confidence Confidence  `json:"confidence"`
	Sources    []SourceRef `json:"sources"`
}

// Key returns the catalog identity of the draft.
func (p *PlaceDraft) Key() string {
	return PlaceKey(p.Name, p.City)
}

// CanonicalPlace is a merged catalog entry.
type CanonicalPlace struct {
	PlaceDraft
	MentionCount int `json:"mention_count"`
}

// Clone returns a deep copy of the place.
func (p *CanonicalPlace) Clone() *CanonicalPlace {
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Sources = append([]SourceRef(nil), p.Sources...)
	return &out
}

// PlaceKey builds the identity key shared by drafts and catalog entries.
// Country is not part of the key: two places with the same name in
// same-named cities collapse into one entry.
func PlaceKey(name, city string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "_" + strings.ToLower(strings.TrimSpace(city))
}
