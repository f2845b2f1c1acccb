package domain

// GenerationProvider identifies the hosted model backend
type GenerationProvider string

const (
	GenerationProviderGemini GenerationProvider = "gemini"
	GenerationProviderOpenAI GenerationProvider = "openai"

	// GenerationProviderOllama talks to a local Ollama through its
	// OpenAI-compatible endpoint
	GenerationProviderOllama GenerationProvider = "ollama"
)

// DefaultGenerationModel is used when no model is configured for Gemini
const DefaultGenerationModel = "gemini-2.5-flash"

// GenerationSettings configures the generation service and chat streamer
type GenerationSettings struct {
	Provider GenerationProvider `json:"provider"`
	Model    string             `json:"model"`
	APIKey   string             `json:"-"` // Never serialize to JSON
	BaseURL  string             `json:"base_url,omitempty"`
}

// IsConfigured returns true if the settings name a provider and carry a key when one is needed
func (s *GenerationSettings) IsConfigured() bool {
	if s.Provider == "" {
		return false
	}
	if s.Provider.RequiresAPIKey() && s.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p GenerationProvider) RequiresAPIKey() bool {
	return p != GenerationProviderOllama
}

// IsValid returns true if this is a known provider
func (p GenerationProvider) IsValid() bool {
	switch p {
	case GenerationProviderGemini, GenerationProviderOpenAI, GenerationProviderOllama:
		return true
	default:
		return false
	}
}
