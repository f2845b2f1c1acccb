package runtime

import (
	"context"
	"sync"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Services holds references to dynamically configurable harvest dependencies.
// The harvest configuration is swapped by the config file watcher and the
// generation service can be replaced at runtime. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	harvest    *domain.HarvestConfig
	generation driven.GenerationService
	version    int
}

// NewServices creates a new Services registry.
// A nil config is replaced by the default harvest configuration.
func NewServices(cfg *domain.HarvestConfig) *Services {
	if cfg == nil {
		cfg = domain.DefaultHarvestConfig()
	}
	return &Services{
		harvest: cfg.Clone(),
	}
}

// HarvestConfig returns a snapshot of the current harvest configuration.
// Callers may modify the returned copy freely.
func (s *Services) HarvestConfig() *domain.HarvestConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.harvest.Clone()
}

// SetHarvestConfig replaces the harvest configuration. Runs already in
// progress keep the snapshot they started with.
func (s *Services) SetHarvestConfig(cfg *domain.HarvestConfig) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.harvest = cfg.Clone()
	s.version++
}

// ConfigVersion counts configuration swaps since startup
func (s *Services) ConfigVersion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// GenerationService returns the current generation service (may be nil)
func (s *Services) GenerationService() driven.GenerationService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SetGenerationService updates the generation service.
// Closes the old service if present.
func (s *Services) SetGenerationService(svc driven.GenerationService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != nil && s.generation != svc {
		_ = s.generation.Close()
	}
	s.generation = svc
}

// ValidateAndSetGeneration validates connectivity before setting the generation service
func (s *Services) ValidateAndSetGeneration(ctx context.Context, svc driven.GenerationService) error {
	if svc == nil {
		s.SetGenerationService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetGenerationService(svc)
	return nil
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != nil {
		_ = s.generation.Close()
		s.generation = nil
	}
	return nil
}
