package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"cafe", CategoryCafe},
		{"Cafe", CategoryCafe},
		{"  Restaurant ", CategoryRestaurant},
		{"street food", CategoryStreetFood},
		{"Street Food", CategoryStreetFood},
		{"restaurants", CategoryRestaurant},
		{"bistro", CategoryRestaurant},
		{"pub", CategoryBar},
		{"lounge", CategoryBar},
		{"bars", CategoryBar},
		{"coffee shop", CategoryCafe},
		{"coffee_shop", CategoryCafe},
		{"coffee", CategoryCafe},
		{"food stall", CategoryStreetFood},
		{"night market", CategoryMarket},
		{"shrine", CategoryTemple},
		{"district", CategoryNeighborhood},
		{"area", CategoryNeighborhood},
		{"attraction", CategoryLandmark},
		{"sight", CategoryLandmark},
		{"bowling alley", CategoryActivity},
		{"", CategoryActivity},
		{"🍜", CategoryActivity},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestNormalizeCategory_Total(t *testing.T) {
	inputs := []string{"x", "CAFE", "Theatre", "rooftop bar", "||", "museum ", "night_market", "Beach Club"}
	for _, in := range inputs {
		assert.True(t, NormalizeCategory(in).IsValid(), "input %q", in)
	}
}

func TestCategories_AllValid(t *testing.T) {
	assert.Len(t, Categories, 20)
	for _, c := range Categories {
		assert.True(t, c.IsValid())
		assert.Equal(t, c, NormalizeCategory(string(c)))
	}
}

func TestTags_Vocabulary(t *testing.T) {
	assert.Len(t, Tags, 36)
	seen := map[string]bool{}
	for _, tag := range Tags {
		assert.False(t, seen[tag], "duplicate tag %s", tag)
		seen[tag] = true
		assert.True(t, IsValidTag(tag))
	}
	assert.False(t, IsValidTag("fancy"))
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		category Category
		want     []string
	}{
		{"valid tags kept", "chill, coffee", CategoryCafe, []string{"chill", "coffee"}},
		{"case and spaces normalised", "Hidden Gem, LATE NIGHT", CategoryBar, []string{"hidden_gem", "late_night"}},
		{"unknown tags dropped", "fancy, coffee, pricey", CategoryCafe, []string{"coffee"}},
		{"capped at four", "food, coffee, drinks, nightlife, local, chill", CategoryBar, []string{"food", "coffee", "drinks", "nightlife"}},
		{"duplicates collapsed", "food, Food, food", CategoryRestaurant, []string{"food"}},
		{"empty falls back to category defaults", "", CategoryBar, []string{"drinks", "nightlife"}},
		{"invalid falls back to category defaults", "amazing, wow", CategoryStreetFood, []string{"food", "budget", "local"}},
		{"unmapped category falls back to local", "amazing", CategorySpa, []string{"local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.raw, tt.category))
		})
	}
}

func TestDefaultTags_ReturnsCopy(t *testing.T) {
	tags := DefaultTags(CategoryCafe)
	tags[0] = "mutated"
	assert.Equal(t, []string{"coffee", "chill"}, DefaultTags(CategoryCafe))
}

func TestPlaceKey(t *testing.T) {
	assert.Equal(t, "onibus coffee_tokyo", PlaceKey("Onibus Coffee", "Tokyo"))
	assert.Equal(t, "onibus coffee_tokyo", PlaceKey("onibus coffee ", " Tokyo"))
	assert.Equal(t, "café de flore_paris", PlaceKey("Café de Flore", "PARIS"))

	d := &PlaceDraft{Name: " Jay Fai ", City: "Bangkok"}
	assert.Equal(t, "jay fai_bangkok", d.Key())
}

func TestCanonicalPlace_Clone(t *testing.T) {
	p := &CanonicalPlace{
		PlaceDraft: PlaceDraft{
			Name:    "Jay Fai",
			Tags:    []string{"food"},
			Sources: []SourceRef{{URL: "u1"}},
		},
		MentionCount: 1,
	}

	c := p.Clone()
	c.Tags[0] = "changed"
	c.Sources[0].URL = "changed"
	c.MentionCount = 5

	assert.Equal(t, "food", p.Tags[0])
	assert.Equal(t, "u1", p.Sources[0].URL)
	assert.Equal(t, 1, p.MentionCount)
}

func TestCanonicalPlace_JSONShape(t *testing.T) {
	p := &CanonicalPlace{
		PlaceDraft: PlaceDraft{
			Name:       "Kafe Kuala",
			City:       "Kuala Lumpur",
			Country:    "Malaysia",
			Category:   CategoryCafe,
			Tags:       []string{"coffee"},
			Vibe:       "tiny shophouse cafe with great kopi",
			Confidence: ConfidenceHigh,
			Sources:    []SourceRef{{URL: "https://reddit.com/r/x", Title: "t", Channel: "x"}},
		},
		MentionCount: 2,
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, field := range []string{"name", "city", "country", "category", "tags", "vibe", "confidence", "sources", "mention_count"} {
		assert.Contains(t, raw, field)
	}
	assert.Len(t, raw, 9)

	source := raw["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "x", source["subreddit"])
	assert.Contains(t, source, "url")
	assert.Contains(t, source, "title")
}
