// Package cli implements the lowkey-harvest command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// testCities and testQueryLimit shape the --test run.
var testCities = []string{"Paris", "Tokyo"}

const testQueryLimit = 2

// ConfigStore exposes the live harvest configuration.
type ConfigStore interface {
	HarvestConfig() *domain.HarvestConfig
	SetHarvestConfig(cfg *domain.HarvestConfig)
}

// KeyHasher hashes admin keys.
type KeyHasher interface {
	HashKey(key string) (string, error)
}

var (
	version = "dev"

	harvester   driving.Harvester
	configStore ConfigStore
	keyHasher   KeyHasher
)

var (
	cityFlag string
	allFlag  bool
	testFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "lowkey-harvest",
	Short: "Harvest place recommendations from Reddit",
	Long: `Searches Reddit for local recommendations, filters and validates the
threads, extracts places and merges them into per-city catalogs.

Examples:
  lowkey-harvest --city Paris     # Single city
  lowkey-harvest --all            # All configured cities
  lowkey-harvest --test           # Paris and Tokyo, two queries each
  lowkey-harvest show paris       # Summarise a saved city file`,
	SilenceUsage: true,
	RunE:         runHarvest,
}

func init() {
	rootCmd.Flags().StringVar(&cityFlag, "city", "", "harvest a single city (e.g. 'Paris')")
	rootCmd.Flags().BoolVar(&allFlag, "all", false, "harvest all configured cities")
	rootCmd.Flags().BoolVar(&testFlag, "test", false, "test run with 2 cities, 2 queries each")
	rootCmd.MarkFlagsMutuallyExclusive("city", "all", "test")
}

// SetServices wires the services the commands run against.
func SetServices(h driving.Harvester, cfg ConfigStore, hasher KeyHasher) {
	harvester = h
	configStore = cfg
	keyHasher = hasher
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	city := strings.TrimSpace(cityFlag)
	if city == "" && !allFlag && !testFlag {
		return cmd.Help()
	}
	if harvester == nil {
		return errors.New("harvester not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case city != "":
		cmd.Printf("Harvesting %s...\n", city)
		result, err := harvester.HarvestCity(ctx, city)
		if err != nil {
			return fmt.Errorf("harvest failed: %w", err)
		}
		cmd.Printf("Found %d places from %d posts.\n", len(result.Places), result.PostsCount)
		cmd.Print(renderSummary(result.City, nil, result.Places))
		return nil

	case testFlag:
		if configStore == nil {
			return errors.New("harvest config not configured")
		}
		cfg := configStore.HarvestConfig()
		if len(cfg.QueryPatterns) > testQueryLimit {
			cfg.QueryPatterns = cfg.QueryPatterns[:testQueryLimit]
		}
		configStore.SetHarvestConfig(cfg)

		cmd.Printf("Test run: %s (%d queries each)...\n", strings.Join(testCities, ", "), len(cfg.QueryPatterns))
		return harvestRun(cmd, func() (*domain.HarvestRun, error) {
			return harvester.HarvestCities(ctx, testCities)
		})

	default:
		cmd.Println("Harvesting all configured cities...")
		return harvestRun(cmd, func() (*domain.HarvestRun, error) {
			return harvester.HarvestAll(ctx)
		})
	}
}

func harvestRun(cmd *cobra.Command, run func() (*domain.HarvestRun, error)) error {
	result, err := run()
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}
	cmd.Print(renderSummary("HARVEST COMPLETE", result.Stats(), result.Places()))
	return nil
}
