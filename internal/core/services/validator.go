package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

const (
	validationBodyRunes    = 500
	validationCommentRunes = 200
)

// Validator asks the generation service whether a document names concrete
// places. It fails open: a generation error admits the document.
type Validator struct {
	generator driven.GenerationService
	logger    *slog.Logger
}

// ValidatorConfig holds dependencies for Validator.
type ValidatorConfig struct {
	Generator driven.GenerationService
	Logger    *slog.Logger
}

// NewValidator creates a new validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		generator: cfg.Generator,
		logger:    logger,
	}
}

// Validate runs the yes/no pass over one document.
func (v *Validator) Validate(ctx context.Context, doc *domain.Document) domain.ValidationResult {
	response, err := v.generator.Generate(ctx, BuildValidationPrompt(doc))
	if err != nil {
		v.logger.Warn("validation failed, admitting document",
			"url", doc.URL,
			"error", err,
		)
		return domain.ValidationResult{HasRecommendations: true, RawResponse: err.Error()}
	}

	return domain.ValidationResult{
		HasRecommendations: ParseValidationResponse(response),
		RawResponse:        strings.TrimSpace(response),
	}
}

// ParseValidationResponse reads a yes/no answer. The answer is yes only when
// "yes" appears and no "no" precedes its first occurrence.
func ParseValidationResponse(response string) bool {
	answer := strings.ToLower(strings.TrimSpace(response))
	idx := strings.Index(answer, "yes")
	if idx < 0 {
		return false
	}
	return !strings.Contains(answer[:idx], "no")
}

// BuildValidationPrompt renders the validation prompt for a document.
func BuildValidationPrompt(doc *domain.Document) string {
	var comments []string
	for _, c := range doc.TopComments(domain.ValidationCommentLimit) {
		comments = append(comments, "- "+domain.TruncateRunes(c.Body, validationCommentRunes))
	}

	return fmt.Sprintf(`Does this Reddit post contain specific named place recommendations (cafes, restaurants, bars, shops, attractions)?

Post Title: %s
Post Body: %s

Top Comments:
%s

Answer ONLY: Yes or No
Be strict: Only "Yes" if actual named places are mentioned (not just "a cafe" or "some restaurant").`,
		doc.Title,
		domain.TruncateRunes(doc.Body, validationBodyRunes),
		strings.Join(comments, "\n"),
	)
}
