package driven

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// DocumentSource searches a discussion site and fetches thread content.
type DocumentSource interface {
	// Search returns up to limit hits for a query, in ranking order.
	Search(ctx context.Context, query string, limit int) ([]domain.RawResult, error)

	// FetchDetails loads the body and comments behind a permalink.
	// Returns nil, nil when the thread has no usable content.
	FetchDetails(ctx context.Context, permalink string) (*domain.DocumentDetails, error)

	// HostMarker is the substring that identifies links this source can fetch,
	// e.g. "reddit.com". The permalink is the part of the link after it.
	HostMarker() string
}
