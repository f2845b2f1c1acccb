package driven

import (
	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// GenerationFactory creates generation clients based on configuration
type GenerationFactory interface {
	// CreateGenerationService creates a single-prompt generation service.
	// Returns nil, nil if settings are not configured.
	CreateGenerationService(settings *domain.GenerationSettings) (GenerationService, error)

	// CreateChatStreamer creates a streaming chat client.
	// Returns nil, nil if settings are not configured.
	CreateChatStreamer(settings *domain.GenerationSettings) (ChatStreamer, error)
}
