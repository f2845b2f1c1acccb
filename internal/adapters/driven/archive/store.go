package archive

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CatalogStore = (*Store)(nil)

// Target is a named secondary catalog store.
type Target struct {
	Name  string
	Store driven.CatalogStore
}

// Store writes to a primary catalog store and mirrors every write to the
// archive targets. Only primary failures are returned. Archive failures are
// logged and the remaining targets are still written.
type Store struct {
	primary driven.CatalogStore
	targets []Target
	logger  *slog.Logger
}

// New creates an archiving store. Targets with a nil Store are ignored.
func New(primary driven.CatalogStore, logger *slog.Logger, targets ...Target) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Store != nil {
			kept = append(kept, t)
		}
	}
	return &Store{primary: primary, targets: kept, logger: logger}
}

// Targets returns the names of the archive targets.
func (s *Store) Targets() []string {
	names := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		names = append(names, t.Name)
	}
	return names
}

func (s *Store) SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error {
	if err := s.primary.SaveCity(ctx, city, places); err != nil {
		return err
	}
	s.mirror(ctx, "save_city", func(store driven.CatalogStore) error {
		return store.SaveCity(ctx, city, places)
	}, "city", city)
	return nil
}

func (s *Store) SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error {
	if err := s.primary.SaveCombined(ctx, places); err != nil {
		return err
	}
	s.mirror(ctx, "save_combined", func(store driven.CatalogStore) error {
		return store.SaveCombined(ctx, places)
	}, "places", len(places))
	return nil
}

func (s *Store) SaveStats(ctx context.Context, stats *domain.RunStats) error {
	if err := s.primary.SaveStats(ctx, stats); err != nil {
		return err
	}
	s.mirror(ctx, "save_stats", func(store driven.CatalogStore) error {
		return store.SaveStats(ctx, stats)
	})
	return nil
}

// LoadCity reads from the primary store only.
func (s *Store) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	return s.primary.LoadCity(ctx, city)
}

func (s *Store) mirror(ctx context.Context, op string, fn func(driven.CatalogStore) error, attrs ...any) {
	for _, t := range s.targets {
		if err := fn(t.Store); err != nil {
			args := append([]any{"archive", t.Name, "op", op, "error", err}, attrs...)
			s.logger.WarnContext(ctx, "archive write failed", args...)
		}
	}
}
