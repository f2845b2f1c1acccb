package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Ensure MockCatalogStore implements CatalogStore
var _ driven.CatalogStore = (*MockCatalogStore)(nil)

// MockCatalogStore keeps catalogs in memory for testing
type MockCatalogStore struct {
	mu       sync.Mutex
	Cities   map[string][]*domain.CanonicalPlace
	Combined []*domain.CanonicalPlace
	Stats    *domain.RunStats

	// Order of saved cities
	SavedCities []string

	SaveCityFn     func(ctx context.Context, city string, places []*domain.CanonicalPlace) error
	SaveCombinedFn func(ctx context.Context, places []*domain.CanonicalPlace) error
	SaveStatsFn    func(ctx context.Context, stats *domain.RunStats) error
}

// NewMockCatalogStore creates an empty in-memory catalog store
func NewMockCatalogStore() *MockCatalogStore {
	return &MockCatalogStore{
		Cities: make(map[string][]*domain.CanonicalPlace),
	}
}

func (m *MockCatalogStore) SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error {
	if m.SaveCityFn != nil {
		return m.SaveCityFn(ctx, city, places)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cities[strings.ToLower(city)] = places
	m.SavedCities = append(m.SavedCities, city)
	return nil
}

func (m *MockCatalogStore) SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error {
	if m.SaveCombinedFn != nil {
		return m.SaveCombinedFn(ctx, places)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Combined = places
	return nil
}

func (m *MockCatalogStore) SaveStats(ctx context.Context, stats *domain.RunStats) error {
	if m.SaveStatsFn != nil {
		return m.SaveStatsFn(ctx, stats)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stats = stats
	return nil
}

func (m *MockCatalogStore) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	places, ok := m.Cities[strings.ToLower(city)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return places, nil
}
