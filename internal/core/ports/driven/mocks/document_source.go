package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Ensure MockDocumentSource implements DocumentSource
var _ driven.DocumentSource = (*MockDocumentSource)(nil)

// MockDocumentSource is a mock implementation of DocumentSource for testing.
// Without hooks it serves Results by query and Details by permalink.
type MockDocumentSource struct {
	mu sync.Mutex

	Results map[string][]domain.RawResult
	Details map[string]*domain.DocumentDetails

	SearchFn       func(ctx context.Context, query string, limit int) ([]domain.RawResult, error)
	FetchDetailsFn func(ctx context.Context, permalink string) (*domain.DocumentDetails, error)

	// Call records
	Queries    []string
	Permalinks []string
}

// NewMockDocumentSource creates an empty mock source
func NewMockDocumentSource() *MockDocumentSource {
	return &MockDocumentSource{
		Results: make(map[string][]domain.RawResult),
		Details: make(map[string]*domain.DocumentDetails),
	}
}

func (m *MockDocumentSource) Search(ctx context.Context, query string, limit int) ([]domain.RawResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, limit)
	}
	results := m.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockDocumentSource) FetchDetails(ctx context.Context, permalink string) (*domain.DocumentDetails, error) {
	m.mu.Lock()
	m.Permalinks = append(m.Permalinks, permalink)
	m.mu.Unlock()

	if m.FetchDetailsFn != nil {
		return m.FetchDetailsFn(ctx, permalink)
	}
	return m.Details[permalink], nil
}

func (m *MockDocumentSource) HostMarker() string {
	return "reddit.com"
}
