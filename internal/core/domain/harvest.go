package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CityPlaceholder is substituted with the city name in query patterns.
const CityPlaceholder = "{city}"

// HarvestConfig controls which cities are harvested and how.
type HarvestConfig struct {
	// Cities are harvested in order
	Cities []string `json:"cities"`

	// QueryPatterns contain a {city} placeholder
	QueryPatterns []string `json:"query_patterns"`

	// PostsPerQuery is the search result limit per query
	PostsPerQuery int `json:"posts_per_query"`

	// RequestDelay is the politeness wait between source requests
	RequestDelay time.Duration `json:"request_delay"`

	// Validate enables the yes/no validation pass before extraction
	Validate bool `json:"validate"`

	// OutputDir is where catalog files are written
	OutputDir string `json:"output_dir"`
}

// DefaultCities are the ten most visited cities.
var DefaultCities = []string{
	"Bangkok",
	"Hong Kong",
	"London",
	"Macau",
	"Istanbul",
	"Dubai",
	"Rome",
	"Antalya",
	"Paris",
	"Kuala Lumpur",
}

// DefaultQueryPatterns span food and drink, activities and accommodation.
var DefaultQueryPatterns = []string{
	// Food & drink
	"{city} cafe recommendations",
	"{city} best restaurants local",
	"{city} hidden gem food",
	"{city} street food must try",
	"{city} best bars nightlife",
	"{city} coffee shops work",
	"{city} brunch spots",
	"{city} cheap eats budget",
	"{city} fine dining worth it",
	"{city} rooftop bars",

	// Activities & culture
	"{city} hidden gems tourists miss",
	"{city} local favorites avoid crowds",
	"{city} best neighborhoods explore",
	"{city} things to do off beaten path",
	"{city} best markets shopping",
	"{city} museums worth visiting",
	"{city} viewpoints sunset",
	"{city} day trips recommendations",

	// Accommodation
	"{city} best areas to stay",
	"{city} boutique hotels recommendations",
	"{city} hostels backpacker",
}

// DefaultHarvestConfig returns the stock harvest configuration.
func DefaultHarvestConfig() *HarvestConfig {
	return &HarvestConfig{
		Cities:        append([]string(nil), DefaultCities...),
		QueryPatterns: append([]string(nil), DefaultQueryPatterns...),
		PostsPerQuery: 10,
		RequestDelay:  5 * time.Second,
		Validate:      true,
		OutputDir:     "data",
	}
}

// Clone returns a copy that shares no slices with c.
func (c *HarvestConfig) Clone() *HarvestConfig {
	out := *c
	out.Cities = append([]string(nil), c.Cities...)
	out.QueryPatterns = append([]string(nil), c.QueryPatterns...)
	return &out
}

// Queries renders every query pattern for a city.
func (c *HarvestConfig) Queries(city string) []string {
	queries := make([]string, 0, len(c.QueryPatterns))
	for _, p := range c.QueryPatterns {
		queries = append(queries, RenderQuery(p, city))
	}
	return queries
}

// HasCity reports whether city is configured, ignoring case.
func (c *HarvestConfig) HasCity(city string) bool {
	for _, configured := range c.Cities {
		if strings.EqualFold(configured, strings.TrimSpace(city)) {
			return true
		}
	}
	return false
}

// RenderQuery substitutes the city into a query pattern.
func RenderQuery(pattern, city string) string {
	return strings.ReplaceAll(pattern, CityPlaceholder, city)
}

// CitySlug is the file-safe form of a city name: "Hong Kong" -> "hong_kong".
func CitySlug(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "_")
}

// ValidationResult is the outcome of the yes/no validation pass.
type ValidationResult struct {
	HasRecommendations bool   `json:"has_recommendations"`
	RawResponse        string `json:"raw_response"`
}

// CityResult is the outcome of harvesting one city.
type CityResult struct {
	City string `json:"city"`

	// PostsCount is the number of documents that reached extraction
	PostsCount int `json:"posts_count"`

	Places []*CanonicalPlace `json:"places"`
}

// CityStat is the per-city entry of the run statistics file.
type CityStat struct {
	City   string `json:"city"`
	Posts  int    `json:"posts"`
	Places int    `json:"places"`
}

// RunStats is the persisted summary of a harvest run.
type RunStats struct {
	RunDate         string     `json:"run_date"`
	DurationMinutes float64    `json:"duration_minutes"`
	TotalCities     int        `json:"total_cities"`
	TotalPlaces     int        `json:"total_places"`
	Cities          []CityStat `json:"cities"`
}

// RunDateLayout formats RunStats.RunDate.
const RunDateLayout = "2006-01-02 15:04:05"

// HarvestRun accumulates the results of one multi-city run.
type HarvestRun struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Cities      []*CityResult
}

// NewHarvestRun starts a run clock.
func NewHarvestRun() *HarvestRun {
	return &HarvestRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Add records a finished city.
func (r *HarvestRun) Add(result *CityResult) {
	r.Cities = append(r.Cities, result)
}

// Complete stops the run clock.
func (r *HarvestRun) Complete() {
	r.CompletedAt = time.Now()
}

// Places returns all places across cities in harvest order.
func (r *HarvestRun) Places() []*CanonicalPlace {
	var all []*CanonicalPlace
	for _, c := range r.Cities {
		all = append(all, c.Places...)
	}
	if all == nil {
		all = []*CanonicalPlace{}
	}
	return all
}

// Stats builds the persisted statistics object.
func (r *HarvestRun) Stats() *RunStats {
	end := r.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	stats := &RunStats{
		RunDate:         r.StartedAt.Format(RunDateLayout),
		DurationMinutes: math.Round(end.Sub(r.StartedAt).Minutes()*10) / 10,
		TotalCities:     len(r.Cities),
		Cities:          make([]CityStat, 0, len(r.Cities)),
	}
	for _, c := range r.Cities {
		stats.TotalPlaces += len(c.Places)
		stats.Cities = append(stats.Cities, CityStat{
			City:   c.City,
			Posts:  c.PostsCount,
			Places: len(c.Places),
		})
	}
	return stats
}
