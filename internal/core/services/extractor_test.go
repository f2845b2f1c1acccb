package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven/mocks"
)

var testDoc = &domain.Document{
	Title:   "Best cafes in Tokyo?",
	URL:     "https://www.reddit.com/r/JapanTravel/comments/1/best_cafes/",
	Channel: "JapanTravel",
}

func TestParsePlaceLines(t *testing.T) {
	response := `NAME | CITY | COUNTRY | CATEGORY | TAGS | VIBE | CONFIDENCE
---
Onibus Coffee | Tokyo | Japan | cafe | coffee, chill | Tiny roastery in Nakameguro with incredible pour-over, go early. | high
Fuglen Tokyo | Tokyo | Japan | Coffee Shop | coffee, nightlife, Late Night | Norwegian coffee by day that turns into a cocktail bar at night. | medium`

	drafts := ParsePlaceLines(response, testDoc)
	require.Len(t, drafts, 2)

	onibus := drafts[0]
	assert.Equal(t, "Onibus Coffee", onibus.Name)
	assert.Equal(t, "Tokyo", onibus.City)
	assert.Equal(t, "Japan", onibus.Country)
	assert.Equal(t, domain.CategoryCafe, onibus.Category)
	assert.Equal(t, []string{"coffee", "chill"}, onibus.Tags)
	assert.Equal(t, domain.ConfidenceHigh, onibus.Confidence)
	assert.Equal(t, []domain.SourceRef{{
		URL:     testDoc.URL,
		Title:   testDoc.Title,
		Channel: "JapanTravel",
	}}, onibus.Sources)

	fuglen := drafts[1]
	assert.Equal(t, domain.CategoryCafe, fuglen.Category)
	assert.Equal(t, []string{"coffee", "nightlife", "late_night"}, fuglen.Tags)
	assert.Equal(t, domain.ConfidenceMedium, fuglen.Confidence)
}

func TestParsePlaceLines_QualityGates(t *testing.T) {
	longVibe := "A vibe that is comfortably over twenty runes."

	tests := []struct {
		name string
		line string
	}{
		{"low confidence", "Bad Bar | Rome | Italy | bar | drinks | " + longVibe + " | low"},
		{"LOW confidence", "Bad Bar | Rome | Italy | bar | drinks | " + longVibe + " | LOW"},
		{"short vibe", "Bad Bar | Rome | Italy | bar | drinks | too short | high"},
		{"short name", "X | Rome | Italy | bar | drinks | " + longVibe + " | high"},
		{"six fields", "Bad Bar | Rome | Italy | bar | drinks | " + longVibe},
		{"no pipes", "Bad Bar, Rome, Italy"},
		{"header", "NAME | CITY | COUNTRY | CATEGORY | TAGS | VIBE that is long enough | CONFIDENCE"},
		{"separator", "--- | a | b | c | d | " + longVibe + " | high"},
		{"good example", "✅ Good | a | b | c | d | " + longVibe + " | high"},
		{"bad example", "❌ Bad | a | b | c | d | " + longVibe + " | high"},
		{"blank", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ParsePlaceLines(tt.line, testDoc))
		})
	}
}

func TestParsePlaceLines_ExtraFieldsIgnored(t *testing.T) {
	line := "Jay Fai | Bangkok | Thailand | street_food | food | Michelin-starred street wok legend in goggles. | high | extra | more"

	drafts := ParsePlaceLines(line, testDoc)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.CategoryStreetFood, drafts[0].Category)
	assert.Equal(t, domain.ConfidenceHigh, drafts[0].Confidence)
}

func TestParsePlaceLines_Coercion(t *testing.T) {
	vibe := "Hole in the wall that locals swear by, cash only."

	tests := []struct {
		name         string
		category     string
		tags         string
		confidence   string
		wantCategory domain.Category
		wantTags     []string
		wantConf     domain.Confidence
	}{
		{"synonym category", "pub", "drinks", "High", domain.CategoryBar, []string{"drinks"}, domain.ConfidenceHigh},
		{"unknown category", "bowling alley", "", "medium", domain.CategoryActivity, []string{"local"}, domain.ConfidenceMedium},
		{"odd confidence", "market", "fancy", "very high", domain.CategoryMarket, []string{"shopping", "local"}, domain.ConfidenceMedium},
		{"tags capped", "cafe", "coffee, chill, solo, views, art", "medium", domain.CategoryCafe, []string{"coffee", "chill", "solo", "views"}, domain.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := strings.Join([]string{"Some Place", "Rome", "Italy", tt.category, tt.tags, vibe, tt.confidence}, " | ")
			drafts := ParsePlaceLines(line, testDoc)
			require.Len(t, drafts, 1)
			assert.Equal(t, tt.wantCategory, drafts[0].Category)
			assert.Equal(t, tt.wantTags, drafts[0].Tags)
			assert.Equal(t, tt.wantConf, drafts[0].Confidence)
		})
	}
}

func TestParsePlaceLines_MalformedLineDoesNotAbort(t *testing.T) {
	response := `garbage | line
Good Place | Paris | France | cafe | coffee | Sunny terrace with the best croissants nearby. | high
another | broken
Second Spot | Paris | France | bar | drinks | Candle-lit cellar bar with natural wines only. | medium`

	drafts := ParsePlaceLines(response, testDoc)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Good Place", drafts[0].Name)
	assert.Equal(t, "Second Spot", drafts[1].Name)
}

func TestExtractor_Extract(t *testing.T) {
	gen := mocks.NewMockGenerationService(func(ctx context.Context, prompt string) (string, error) {
		return "Onibus Coffee | Tokyo | Japan | cafe | coffee | Tiny roastery in Nakameguro with great pour-over. | high", nil
	})
	e := NewExtractor(ExtractorConfig{Generator: gen})

	drafts := e.Extract(context.Background(), testDoc)

	require.Len(t, drafts, 1)
	assert.Contains(t, gen.Prompts[0], "POST TITLE: Best cafes in Tokyo?")
}

func TestExtractor_FailsEmpty(t *testing.T) {
	gen := mocks.NewMockGenerationService(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model overloaded")
	})
	e := NewExtractor(ExtractorConfig{Generator: gen})

	assert.Empty(t, e.Extract(context.Background(), testDoc))
	assert.Equal(t, 1, gen.Calls(), "no retry expected")
}

func TestBuildExtractionPrompt(t *testing.T) {
	doc := &domain.Document{
		Title: "Paris spots",
		Body:  strings.Repeat("é", 2100),
	}
	for i := 0; i < 25; i++ {
		doc.Comments = append(doc.Comments, domain.Comment{Body: strings.Repeat("x", 600), Upvotes: i})
	}

	prompt := BuildExtractionPrompt(doc)

	assert.Contains(t, prompt, strings.Repeat("é", 2000))
	assert.NotContains(t, prompt, strings.Repeat("é", 2001))
	assert.Equal(t, 20, strings.Count(prompt, "- "+strings.Repeat("x", 500)))
	assert.NotContains(t, prompt, strings.Repeat("x", 501))
	assert.Contains(t, prompt, "cafe | restaurant | bar")
	assert.Contains(t, prompt, "food, coffee, drinks")
	assert.Contains(t, prompt, "NAME | CITY | COUNTRY | CATEGORY | TAGS | VIBE | CONFIDENCE")
}
