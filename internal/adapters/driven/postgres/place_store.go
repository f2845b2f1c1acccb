package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CatalogStore = (*PlaceStore)(nil)

// PlaceStore archives catalogs in PostgreSQL. Each save replaces the
// previous rows of its scope in one transaction; run stats are appended.
type PlaceStore struct {
	db *DB
}

// NewPlaceStore creates a new PlaceStore
func NewPlaceStore(db *DB) *PlaceStore {
	return &PlaceStore{db: db}
}

// SaveCity replaces the archived catalog of a city
func (s *PlaceStore) SaveCity(ctx context.Context, city string, places []*domain.CanonicalPlace) error {
	slug := domain.CitySlug(strings.TrimSpace(city))

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM city_places WHERE city_slug = $1`, slug); err != nil {
			return fmt.Errorf("failed to clear city: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO city_places (
				city_slug, position, place_key, name, city, country, category,
				tags, vibe, confidence, mention_count, sources, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		for i, p := range places {
			sources, err := json.Marshal(p.Sources)
			if err != nil {
				return fmt.Errorf("failed to encode sources: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				slug, i, p.Key(), p.Name, p.City, p.Country, string(p.Category),
				pq.Array(p.Tags), p.Vibe, string(p.Confidence), p.MentionCount, sources, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert place %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

// SaveCombined replaces the archived combined catalog
func (s *PlaceStore) SaveCombined(ctx context.Context, places []*domain.CanonicalPlace) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM combined_places`); err != nil {
			return fmt.Errorf("failed to clear combined catalog: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO combined_places (
				position, place_key, name, city, country, category,
				tags, vibe, confidence, mention_count, sources, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		for i, p := range places {
			sources, err := json.Marshal(p.Sources)
			if err != nil {
				return fmt.Errorf("failed to encode sources: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				i, p.Key(), p.Name, p.City, p.Country, string(p.Category),
				pq.Array(p.Tags), p.Vibe, string(p.Confidence), p.MentionCount, sources, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert place %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

// SaveStats appends a run to the history
func (s *PlaceStore) SaveStats(ctx context.Context, stats *domain.RunStats) error {
	if stats == nil {
		return fmt.Errorf("%w: nil stats", domain.ErrInvalidInput)
	}
	cities, err := json.Marshal(stats.Cities)
	if err != nil {
		return fmt.Errorf("failed to encode city stats: %w", err)
	}

	query := `
		INSERT INTO harvest_runs (run_date, duration_minutes, total_cities, total_places, cities)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		stats.RunDate, stats.DurationMinutes, stats.TotalCities, stats.TotalPlaces, cities,
	)
	return err
}

// LoadCity reads the archived catalog of a city in saved order
func (s *PlaceStore) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	query := `
		SELECT name, city, country, category, tags, vibe, confidence, mention_count, sources
		FROM city_places
		WHERE city_slug = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, domain.CitySlug(strings.TrimSpace(city)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := []*domain.CanonicalPlace{}
	for rows.Next() {
		var p domain.CanonicalPlace
		var category, confidence string
		var tags []string
		var sources []byte

		if err := rows.Scan(
			&p.Name,
			&p.City,
			&p.Country,
			&category,
			pq.Array(&tags),
			&p.Vibe,
			&confidence,
			&p.MentionCount,
			&sources,
		); err != nil {
			return nil, err
		}

		p.Category = domain.Category(category)
		p.Confidence = domain.Confidence(confidence)
		p.Tags = tags
		if err := json.Unmarshal(sources, &p.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
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

// RecentRuns returns the latest run stats, newest first
func (s *PlaceStore) RecentRuns(ctx context.Context, limit int) ([]*domain.RunStats, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT run_date, duration_minutes, total_cities, total_places, cities
		FROM harvest_runs
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunStats
	for rows.Next() {
		var r domain.RunStats
		var cities []byte
		if err := rows.Scan(&r.RunDate, &r.DurationMinutes, &r.TotalCities, &r.TotalPlaces, &cities); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cities, &r.Cities); err != nil {
			return nil, fmt.Errorf("failed to decode city stats: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
