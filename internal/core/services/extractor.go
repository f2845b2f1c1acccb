package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

const (
	extractionBodyRunes    = 2000
	extractionCommentRunes = 500

	minNameRunes = 2
	minVibeRunes = 20

	// placeLineFields is the field count of NAME | CITY | COUNTRY | CATEGORY | TAGS | VIBE | CONFIDENCE
	placeLineFields = 7
)

// skippedLinePrefixes mark header and example lines echoed back by the model.
var skippedLinePrefixes = []string{"NAME", "---", "✅", "❌"}

// Extractor turns a document into place drafts through the generation
// service. It fails empty: a generation error yields no drafts.
type Extractor struct {
	generator driven.GenerationService
	logger    *slog.Logger
}

// ExtractorConfig holds dependencies for Extractor.
type ExtractorConfig struct {
	Generator driven.GenerationService
	Logger    *slog.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		generator: cfg.Generator,
		logger:    logger,
	}
}

// Extract returns the drafts found in one document.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) []domain.PlaceDraft {
	response, err := e.generator.Generate(ctx, BuildExtractionPrompt(doc))
	if err != nil {
		e.logger.Warn("extraction failed",
			"url", doc.URL,
			"error", err,
		)
		return nil
	}
	return ParsePlaceLines(response, doc)
}

// ParsePlaceLines parses the line-oriented extraction output. Lines that do
// not parse or fail the quality gates are skipped; they never abort the batch.
func ParsePlaceLines(response string, doc *domain.Document) []domain.PlaceDraft {
	var drafts []domain.PlaceDraft
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		draft, ok := parsePlaceLine(line, doc)
		if !ok {
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

func parsePlaceLine(line string, doc *domain.Document) (domain.PlaceDraft, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "|") {
		return domain.PlaceDraft{}, false
	}
	for _, prefix := range skippedLinePrefixes {
		if strings.HasPrefix(line, prefix) {
			return domain.PlaceDraft{}, false
		}
	}

	parts := strings.Split(line, "|")
	if len(parts) < placeLineFields {
		return domain.PlaceDraft{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	name := parts[0]
	vibe := parts[5]
	confidence := strings.ToLower(parts[6])

	if confidence == string(domain.ConfidenceLow) ||
		utf8.RuneCountInString(vibe) < minVibeRunes ||
		utf8.RuneCountInString(name) < minNameRunes {
		return domain.PlaceDraft{}, false
	}

	category := domain.NormalizeCategory(parts[3])

	return domain.PlaceDraft{
		Name:       name,
		City:       parts[1],
		Country:    parts[2],
		Category:   category,
		Tags:       domain.NormalizeTags(parts[4], category),
		Vibe:       vibe,
		Confidence: coerceConfidence(confidence),
		Sources:    []domain.SourceRef{doc.Source()},
	}, true
}

func coerceConfidence(raw string) domain.Confidence {
	if raw == string(domain.ConfidenceHigh) {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceMedium
}

// BuildExtractionPrompt renders the extraction prompt for a document.
func BuildExtractionPrompt(doc *domain.Document) string {
	var comments []string
	for _, c := range doc.TopComments(domain.ExtractionCommentLimit) {
		comments = append(comments, "- "+domain.TruncateRunes(c.Body, extractionCommentRunes))
	}

	categories := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		categories[i] = string(c)
	}

	return fmt.Sprintf(extractionPrompt,
		doc.Title,
		domain.TruncateRunes(doc.Body, extractionBodyRunes),
		strings.Join(comments, "\n"),
		strings.Join(categories, " | "),
		strings.Join(domain.Tags, ", "),
	)
}

const extractionPrompt = `You're a travel curator for "Lowkey", a Gen Z app for finding authentic local spots, hidden gems and places tourists don't know about.

Extract EVERY real place mentioned in this Reddit thread: cafes, restaurants, bars, shops, markets, neighborhoods, viewpoints, hotels, anything a traveler would want to visit.

---

POST TITLE: %s

POST BODY:
%s

REDDIT COMMENTS (sorted by upvotes):
%s

---

For EACH place, provide:
1. NAME: Exact place name (as locals call it)
2. CITY: City name
3. COUNTRY: Country name
4. CATEGORY: One of: %s
5. TAGS: 2-4 tags from: %s
6. VIBE: 2-3 sentences on what makes it special, the atmosphere and pro tips (when to go, what to order, what to skip). Write like you're texting a friend, not a travel guide.
7. CONFIDENCE: high | medium

---

VIBE EXAMPLES:

GOOD: "Tiny ramen counter with 8 seats where the chef's been perfecting tonkotsu for 30 years. Cash only, expect a queue, but that broth is life-changing."
GOOD: "Chaotic night market that comes alive after 10pm. Follow the smoke and the longest queues. Skip the touristy front stalls."
BAD: "A popular restaurant known for traditional cuisine"
BAD: "Must-visit destination for tourists"

---

RULES:
- Extract ALL specific named places, even if briefly mentioned
- Skip generic mentions ("a cafe nearby", "some bar")
- Skip major chains unless specifically praised as exceptional
- When in doubt about city or country, make an educated guess from context
- One place per line
- Format exactly: NAME | CITY | COUNTRY | CATEGORY | TAGS | VIBE | CONFIDENCE

OUTPUT:`
