package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CatalogStore = (*CatalogStore)(nil)

// File layout under the output directory.
const (
	citiesDir    = "cities"
	combinedFile = "all_places.json"
	statsFile    = "harvest_stats.json"
)

// CatalogStore writes catalogs as pretty-printed JSON files:
//
//	<dir>/cities/<city slug>.json
//	<dir>/all_places.json
//	<dir>/harvest_stats.json
//
// Files are replaced atomically so readers never see a partial catalog.
type CatalogStore struct {
	dir string
}

// NewCatalogStore creates a file catalog store rooted at dir.
func NewCatalogStore(dir string) *CatalogStore {
	if dir == "" {
		dir = "data"
	}
	return &CatalogStore{dir: dir}
}

// Dir returns the output directory.
func (s *CatalogStore) Dir() string {
	return s.dir
}

// CityPath returns the file a city's catalog is written to.
func (s *CatalogStore) CityPath(city string) string {
	return filepath.Join(s.dir, citiesDir, domain.CitySlug(strings.TrimSpace(city))+".json")
}

// SaveCity writes the catalog of one city. An empty catalog is written as [].
func (s *CatalogStore) SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error {
	if places == nil {
		places = []*domain.CanonicalPlace{}
	}
	return s.write(ctx, s.CityPath(city), places)
}

// SaveCombined writes the combined catalog of a run.
func (s *CatalogStore) SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error {
	if places == nil {
		places = []*domain.CanonicalPlace{}
	}
	return s.write(ctx, filepath.Join(s.dir, combinedFile), places)
}

// SaveStats writes the run statistics.
func (s *CatalogStore) SaveStats(ctx context.Context, stats *domain.RunStats) error {
	if stats == nil {
		return fmt.Errorf("%w: nil stats", domain.ErrInvalidInput)
	}
	return s.write(ctx, filepath.Join(s.dir, statsFile), stats)
}

// LoadCity reads a city catalog written by SaveCity.
func (s *CatalogStore) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	data, err := os.ReadFile(s.CityPath(city))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var places []*domain.CanonicalPlace
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if places == nil {
		places = []*domain.CanonicalPlace{}
	}
	return places, nil
}

// LoadStats reads the statistics of the last run.
func (s *CatalogStore) LoadStats(ctx context.Context) (*domain.RunStats, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, statsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	var stats domain.RunStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &stats, nil
}

func (s *CatalogStore) write(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(v)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// encode renders v with two-space indent. HTML characters and non-ASCII
// text are written as is.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
