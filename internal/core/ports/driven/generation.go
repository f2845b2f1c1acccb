package driven

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// GenerationService produces text from a single prompt.
// One instance is shared by the validator and the extractor.
type GenerationService interface {
	// Generate sends a prompt and returns the full response text.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the service is reachable
	HealthCheck(ctx context.Context) error

	// Close releases resources
	Close() error
}

// ChatStreamer streams a multi-turn chat completion.
type ChatStreamer interface {
	// StreamChat calls emit for every text delta in arrival order and returns
	// the grounding metadata seen on the stream, if any. An error from emit
	// stops the stream and is returned.
	StreamChat(ctx context.Context, req domain.ChatCompletionRequest, emit func(delta string) error) (*domain.Grounding, error)
}
