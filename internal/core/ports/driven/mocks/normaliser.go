package mocks

import (
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Ensure mocks implement their interfaces
var (
	_ driven.Normaliser         = (*MockNormaliser)(nil)
	_ driven.NormaliserRegistry = (*MockNormaliserRegistry)(nil)
)

// MockNormaliser is a mock implementation of Normaliser for testing
type MockNormaliser struct {
	NormaliseFn func(content string, mimeType string) string
	Types       []string
}

func NewMockNormaliser() *MockNormaliser {
	return &MockNormaliser{}
}

func (m *MockNormaliser) Normalise(content string, mimeType string) string {
	if m.NormaliseFn != nil {
		return m.NormaliseFn(content, mimeType)
	}
	return content
}

func (m *MockNormaliser) SupportedTypes() []string {
	if m.Types != nil {
		return m.Types
	}
	return []string{"*/*"}
}

func (m *MockNormaliser) Priority() int {
	return 100
}

// MockNormaliserRegistry returns the same normaliser for every MIME type
type MockNormaliserRegistry struct {
	normaliser driven.Normaliser

	// Requested records every MIME type passed to Get
	Requested []string
}

func NewMockNormaliserRegistry() *MockNormaliserRegistry {
	return &MockNormaliserRegistry{
		normaliser: NewMockNormaliser(),
	}
}

func (m *MockNormaliserRegistry) Get(mimeType string) driven.Normaliser {
	m.Requested = append(m.Requested, mimeType)
	return m.normaliser
}

func (m *MockNormaliserRegistry) Register(normaliser driven.Normaliser) {
	m.normaliser = normaliser
}

// List returns all registered MIME types
func (m *MockNormaliserRegistry) List() []string {
	if m.normaliser != nil {
		return m.normaliser.SupportedTypes()
	}
	return []string{}
}
