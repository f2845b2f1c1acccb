package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Ensure mocks implement their interfaces
var (
	_ driven.GenerationService = (*MockGenerationService)(nil)
	_ driven.ChatStreamer      = (*MockChatStreamer)(nil)
)

// MockGenerationService is a mock implementation of GenerationService for testing
type MockGenerationService struct {
	mu      sync.Mutex
	Prompts []string

	GenerateFn    func(ctx context.Context, prompt string) (string, error)
	HealthCheckFn func(ctx context.Context) error
}

// NewMockGenerationService creates a mock that answers every prompt with GenerateFn
func NewMockGenerationService(fn func(ctx context.Context, prompt string) (string, error)) *MockGenerationService {
	return &MockGenerationService{GenerateFn: fn}
}

func (m *MockGenerationService) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, prompt)
	}
	return "", nil
}

// Calls returns how many prompts were sent
func (m *MockGenerationService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

func (m *MockGenerationService) Model() string {
	return "mock-model"
}

func (m *MockGenerationService) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return nil
}

func (m *MockGenerationService) Close() error {
	return nil
}

// MockChatStreamer is a mock implementation of ChatStreamer for testing.
// Without a hook it emits Deltas in order, then returns Grounding and Err.
type MockChatStreamer struct {
	Deltas    []string
	Grounding *domain.Grounding
	Err       error

	LastRequest  domain.ChatCompletionRequest
	StreamChatFn func(ctx context.Context, req domain.ChatCompletionRequest, emit func(string) error) (*domain.Grounding, error)
}

func (m *MockChatStreamer) StreamChat(ctx context.Context, req domain.ChatCompletionRequest, emit func(string) error) (*domain.Grounding, error) {
	m.LastRequest = req
	if m.StreamChatFn != nil {
		return m.StreamChatFn(ctx, req, emit)
	}
	for _, d := range m.Deltas {
		if err := emit(d); err != nil {
			return nil, err
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Grounding, nil
}
