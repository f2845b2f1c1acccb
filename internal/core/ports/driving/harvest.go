package driving

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// Harvester runs the harvest pipeline
type Harvester interface {
	// HarvestCity collects, filters, validates, extracts and merges one city,
	// then persists the city catalog.
	HarvestCity(ctx context.Context, city string) (*domain.CityResult, error)

	// HarvestAll harvests every configured city in order and persists the
	// combined catalog and the run statistics.
	HarvestAll(ctx context.Context) (*domain.HarvestRun, error)

	// HarvestCities runs HarvestAll over an explicit city list.
	HarvestCities(ctx context.Context, cities []string) (*domain.HarvestRun, error)

	// LoadCity returns the persisted catalog of a city.
	LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error)
}

// HarvestJobs submits harvests to the background workers
type HarvestJobs interface {
	// Submit enqueues a harvest of one city, or of all cities when city is empty
	Submit(ctx context.Context, city string) (*domain.Task, error)

	// GetTask returns the state of a submitted harvest
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
}

// Scheduler manages periodic harvest scheduling
type Scheduler interface {
	// Start begins the scheduler loop
	Start(ctx context.Context) error

	// Stop stops the scheduler
	Stop()
}
