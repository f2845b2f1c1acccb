package driving

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// ChatService answers travel questions through the hosted model
type ChatService interface {
	// Stream writes the answer to emit as it arrives, followed by the sources
	// block. Failures are rendered into the stream; the returned error only
	// reports that emit itself failed.
	Stream(ctx context.Context, req domain.ChatRequest, emit func(chunk string) error) error
}
