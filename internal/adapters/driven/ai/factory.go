package ai

import (
	"fmt"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Ensure Factory implements GenerationFactory
var _ driven.GenerationFactory = (*Factory)(nil)

// Factory creates generation clients based on configuration
type Factory struct{}

// NewFactory creates a new generation client factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateGenerationService creates a generation service from settings
func (f *Factory) CreateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return f.create(settings)
}

// CreateChatStreamer creates a chat streamer from settings
func (f *Factory) CreateChatStreamer(settings *domain.GenerationSettings) (driven.ChatStreamer, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return f.create(settings)
}

// client is what every backend implements
type client interface {
	driven.GenerationService
	driven.ChatStreamer
}

func (f *Factory) create(settings *domain.GenerationSettings) (client, error) {
	switch settings.Provider {
	case domain.GenerationProviderGemini:
		g, err := NewGemini(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return g, nil
	case domain.GenerationProviderOpenAI:
		return newOpenAIClient(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.GenerationProviderOllama:
		baseURL, model := settings.BaseURL, settings.Model
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		if model == "" {
			model = defaultOllamaModel
		}
		return newOpenAIClient(settings.APIKey, model, baseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

func newOpenAIClient(apiKey, model, baseURL string) (client, error) {
	o, err := NewOpenAI(apiKey, model, baseURL)
	if err != nil {
		return nil, err
	}
	return o, nil
}
