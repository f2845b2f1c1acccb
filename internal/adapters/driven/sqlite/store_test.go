package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// setupTestStore creates a SQLite archive in a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "archive", "lowkey.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func place(name, city string, mentions int) *domain.CanonicalPlace {
	return &domain.CanonicalPlace{
		PlaceDraft: domain.PlaceDraft{
			Name:       name,
			City:       city,
			Country:    "Italy",
			Category:   domain.CategoryRestaurant,
			Tags:       []string{"food", "local"},
			Vibe:       "family trattoria where nonna still rolls the pasta by hand",
			Confidence: domain.ConfidenceMedium,
			Sources:    []domain.SourceRef{{URL: "https://www.reddit.com/r/rome/comments/1/", Title: "Eat in Rome", Channel: "rome"}},
		},
		MentionCount: mentions,
	}
}

func TestStore_SaveAndLoadCity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	places := []*domain.CanonicalPlace{place("Da Enzo", "Rome", 3), place("Roscioli", "Rome", 1)}
	require.NoError(t, store.SaveCity(ctx, "Rome", places))

	loaded, err := store.LoadCity(ctx, "rome")
	require.NoError(t, err)
	assert.Equal(t, places, loaded)
}

func TestStore_SaveCityReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCity(ctx, "Rome", []*domain.CanonicalPlace{place("Da Enzo", "Rome", 1), place("Roscioli", "Rome", 1)}))
	require.NoError(t, store.SaveCity(ctx, "Rome", []*domain.CanonicalPlace{place("Armando", "Rome", 2)}))

	loaded, err := store.LoadCity(ctx, "Rome")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Armando", loaded[0].Name)
}

func TestStore_LoadCity_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.LoadCity(context.Background(), "Atlantis")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_SaveCombinedAndStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCombined(ctx, []*domain.CanonicalPlace{place("Da Enzo", "Rome", 1)}))
	require.NoError(t, store.SaveCombined(ctx, []*domain.CanonicalPlace{place("Da Enzo", "Rome", 1), place("Roscioli", "Rome", 1)}))

	var combined int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM combined_places`).Scan(&combined))
	assert.Equal(t, 2, combined)

	stats := &domain.RunStats{RunDate: "2025-03-01 09:30:00", TotalCities: 1, TotalPlaces: 2, Cities: []domain.CityStat{{City: "Rome", Posts: 3, Places: 2}}}
	require.NoError(t, store.SaveStats(ctx, stats))
	require.NoError(t, store.SaveStats(ctx, stats))

	runs, err := store.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func TestStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lowkey.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveCity(context.Background(), "Rome", []*domain.CanonicalPlace{place("Da Enzo", "Rome", 1)}))
	require.NoError(t, first.Close())

	second, err := NewStore(path)
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.LoadCity(context.Background(), "Rome")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
