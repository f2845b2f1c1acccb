package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/runtime"
)

// mockHarvester implements driving.Harvester for testing.
type mockHarvester struct {
	city   string
	cities []string
	all    bool
	err    error

	places []*domain.CanonicalPlace
}

func (m *mockHarvester) HarvestCity(_ context.Context, city string) (*domain.CityResult, error) {
	m.city = city
	if m.err != nil {
		return nil, m.err
	}
	return &domain.CityResult{City: city, PostsCount: 4, Places: m.places}, nil
}

func (m *mockHarvester) HarvestAll(_ context.Context) (*domain.HarvestRun, error) {
	m.all = true
	if m.err != nil {
		return nil, m.err
	}
	run := domain.NewHarvestRun()
	run.Add(&domain.CityResult{City: "Bangkok", PostsCount: 3, Places: m.places})
	run.Complete()
	return run, nil
}

func (m *mockHarvester) HarvestCities(_ context.Context, cities []string) (*domain.HarvestRun, error) {
	m.cities = cities
	run := domain.NewHarvestRun()
	for _, c := range cities {
		run.Add(&domain.CityResult{City: c, Places: []*domain.CanonicalPlace{}})
	}
	run.Complete()
	return run, nil
}

func (m *mockHarvester) LoadCity(_ context.Context, city string) ([]*domain.CanonicalPlace, error) {
	m.city = city
	if m.err != nil {
		return nil, m.err
	}
	return m.places, nil
}

type mockHasher struct{}

func (mockHasher) HashKey(key string) (string, error) {
	return "hashed:" + key, nil
}

func samplePlaces() []*domain.CanonicalPlace {
	return []*domain.CanonicalPlace{
		{
			PlaceDraft: domain.PlaceDraft{
				Name: "Jay Fai", City: "Bangkok", Country: "Thailand",
				Category: domain.CategoryStreetFood, Tags: []string{"food", "local"},
				Vibe: "michelin star crab omelette from a street stall",
			},
			MentionCount: 3,
		},
		{
			PlaceDraft: domain.PlaceDraft{
				Name: "Tropicana Bar", City: "Bangkok", Country: "Thailand",
				Category: domain.CategoryBar, Tags: []string{"drinks"},
			},
			MentionCount: 1,
		},
	}
}

// setupCLITest installs mocks and resets flag state.
func setupCLITest(t *testing.T, h *mockHarvester, cfg ConfigStore) *bytes.Buffer {
	t.Helper()

	oldH, oldCfg, oldHasher := harvester, configStore, keyHasher
	SetServices(h, cfg, mockHasher{})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	t.Cleanup(func() {
		harvester, configStore, keyHasher = oldH, oldCfg, oldHasher
		cityFlag, allFlag, testFlag, tokenKey = "", false, false, ""
		rootCmd.SetArgs(nil)
		for _, name := range []string{"city", "all", "test"} {
			_ = rootCmd.Flags().Lookup(name).Value.Set(rootCmd.Flags().Lookup(name).DefValue)
			rootCmd.Flags().Lookup(name).Changed = false
		}
		tokenCmd.Flags().Lookup("key").Changed = false
	})
	return buf
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "lowkey-harvest", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "--test")
}

func TestRootCmd_NoFlagsPrintsUsage(t *testing.T) {
	h := &mockHarvester{}
	buf := setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "lowkey-harvest --city Paris")
	assert.Empty(t, h.city)
	assert.False(t, h.all)
}

func TestRootCmd_City(t *testing.T) {
	h := &mockHarvester{places: samplePlaces()}
	buf := setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"--city", "Bangkok"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "Bangkok", h.city)
	out := buf.String()
	assert.Contains(t, out, "Found 2 places from 4 posts.")
	assert.Contains(t, out, "BANGKOK")
	assert.Contains(t, out, "Bangkok, Thailand: 2")
	assert.Contains(t, out, "street_food: 1")
	assert.Contains(t, out, "Jay Fai (Bangkok) - 3x mentions")
}

func TestRootCmd_CityError(t *testing.T) {
	h := &mockHarvester{err: domain.ErrHarvestInProgress}
	setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"--city", "Bangkok"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHarvestInProgress)
}

func TestRootCmd_All(t *testing.T) {
	h := &mockHarvester{places: samplePlaces()}
	buf := setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"--all"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.True(t, h.all)
	out := buf.String()
	assert.Contains(t, out, "HARVEST COMPLETE")
	assert.Contains(t, out, "Bangkok: 2 places")
	assert.Contains(t, out, "Total places: 2")
}

func TestRootCmd_TestRun(t *testing.T) {
	h := &mockHarvester{}
	services := runtime.NewServices(nil)
	buf := setupCLITest(t, h, services)
	rootCmd.SetArgs([]string{"--test"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", "Tokyo"}, h.cities)
	assert.Len(t, services.HarvestConfig().QueryPatterns, 2)
	assert.Contains(t, buf.String(), "Test run: Paris, Tokyo (2 queries each)")
}

func TestRootCmd_FlagsMutuallyExclusive(t *testing.T) {
	setupCLITest(t, &mockHarvester{}, nil)
	rootCmd.SetArgs([]string{"--all", "--city", "Paris"})

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestRootCmd_NotConfigured(t *testing.T) {
	setupCLITest(t, nil, nil)
	harvester = nil
	rootCmd.SetArgs([]string{"--all"})

	err := rootCmd.Execute()

	assert.EqualError(t, err, "harvester not configured")
}

func TestShowCmd(t *testing.T) {
	h := &mockHarvester{places: samplePlaces()}
	buf := setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"show", "bangkok"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "bangkok", h.city)
	assert.Contains(t, buf.String(), "Total places: 2")
	assert.Contains(t, buf.String(), "michelin star crab omelette")
}

func TestShowCmd_NotFound(t *testing.T) {
	h := &mockHarvester{err: domain.ErrNotFound}
	setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"show", "atlantis"})

	err := rootCmd.Execute()

	assert.EqualError(t, err, "no harvest found for atlantis")
}

func TestShowCmd_LoadError(t *testing.T) {
	h := &mockHarvester{err: errors.New("disk on fire")}
	setupCLITest(t, h, nil)
	rootCmd.SetArgs([]string{"show", "paris"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestTokenCmd(t *testing.T) {
	buf := setupCLITest(t, &mockHarvester{}, nil)
	rootCmd.SetArgs([]string{"token", "--key", "s3cret"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ADMIN_KEY_HASH=hashed:s3cret")
}

func TestTokenCmd_EmptyKey(t *testing.T) {
	setupCLITest(t, &mockHarvester{}, nil)
	rootCmd.SetArgs([]string{"token", "--key", "  "})

	err := rootCmd.Execute()

	assert.EqualError(t, err, "key must not be empty")
}

func TestVersionCmd(t *testing.T) {
	buf := setupCLITest(t, &mockHarvester{}, nil)
	original := version
	SetVersion("1.2.3")
	defer SetVersion(original)
	rootCmd.SetArgs([]string{"version"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "lowkey-harvest version 1.2.3")
}

func TestRenderSummary_Empty(t *testing.T) {
	out := renderSummary("rome", nil, nil)

	assert.Contains(t, out, "ROME")
	assert.Contains(t, out, "No places found.")
}
