package driven

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// CatalogStore persists harvested catalogs.
type CatalogStore interface {
	// SaveCity replaces the stored catalog of one city.
	SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error

	// SaveCombined replaces the combined catalog across all cities of a run.
	SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error

	// SaveStats records the statistics of a finished run.
	SaveStats(ctx context.Context, stats *domain.RunStats) error

	// LoadCity returns the stored catalog of a city.
	// Returns domain.ErrNotFound when nothing was stored for it.
	LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error)
}
