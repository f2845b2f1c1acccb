package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/lowkey/internal/adapters/driven/sqlite/migrations"
	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CatalogStore = (*Store)(nil)

// Store archives catalogs in a local SQLite file. It mirrors the PostgreSQL
// archive for single-machine runs of the harvest CLI.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the archive at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL lets the CLI read while a worker writes
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveCity replaces the archived catalog of a city.
func (s *Store) SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error {
	slug := domain.CitySlug(strings.TrimSpace(city))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM city_places WHERE city_slug = ?`, slug); err != nil {
			return fmt.Errorf("clearing city: %w", err)
		}

		now := time.Now().UTC()
		for i, p := range places {
			tags, sources, err := encodeLists(p)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO city_places (
					city_slug, position, place_key, name, city, country, category,
					tags, vibe, confidence, mention_count, sources, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, slug, i, p.Key(), p.Name, p.City, p.Country, string(p.Category),
				tags, p.Vibe, string(p.Confidence), p.MentionCount, sources, now)
			if err != nil {
				return fmt.Errorf("inserting place %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

// SaveCombined replaces the archived combined catalog.
func (s *Store) SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM combined_places`); err != nil {
			return fmt.Errorf("clearing combined catalog: %w", err)
		}

		now := time.Now().UTC()
		for i, p := range places {
			tags, sources, err := encodeLists(p)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO combined_places (
					position, place_key, name, city, country, category,
					tags, vibe, confidence, mention_count, sources, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, i, p.Key(), p.Name, p.City, p.Country, string(p.Category),
				tags, p.Vibe, string(p.Confidence), p.MentionCount, sources, now)
			if err != nil {
				return fmt.Errorf("inserting place %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

// SaveStats appends a run to the history.
func (s *Store) SaveStats(ctx context.Context, stats *domain.RunStats) error {
	if stats == nil {
		return fmt.Errorf("%w: nil stats", domain.ErrInvalidInput)
	}
	cities, err := json.Marshal(stats.Cities)
	if err != nil {
		return fmt.Errorf("marshalling city stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO harvest_runs (run_date, duration_minutes, total_cities, total_places, cities)
		VALUES (?, ?, ?, ?, ?)
	`, stats.RunDate, stats.DurationMinutes, stats.TotalCities, stats.TotalPlaces, string(cities))
	return err
}

// LoadCity reads the archived catalog of a city in saved order.
func (s *Store) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, city, country, category, tags, vibe, confidence, mention_count, sources
		FROM city_places
		WHERE city_slug = ?
		ORDER BY position ASC
	`, domain.CitySlug(strings.TrimSpace(city)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := []*domain.CanonicalPlace{}
	for rows.Next() {
		var p domain.CanonicalPlace
		var category, confidence, tags, sources string
		if err := rows.Scan(&p.Name, &p.City, &p.Country, &category, &tags, &p.Vibe, &confidence, &p.MentionCount, &sources); err != nil {
			return nil, err
		}
		p.Category = domain.Category(category)
		p.Confidence = domain.Confidence(confidence)
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &p.Sources); err != nil {
			return nil, fmt.Errorf("unmarshalling sources: %w", err)
		}
		places = append(places, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, domain.ErrNotFound
	}
	return places, nil
}

// RunCount returns the number of archived runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM harvest_runs`).Scan(&n)
	return n, err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodeLists(p *domain.CanonicalPlace) (string, string, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("marshalling tags: %w", err)
	}
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return "", "", fmt.Errorf("marshalling sources: %w", err)
	}
	return string(tagsJSON), string(sourcesJSON), nil
}
