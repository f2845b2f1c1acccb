// Package app assembles the driven adapters shared by the lowkey binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lowkey/internal/adapters/driven/ai"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/archive"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/config"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/filestore"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/memory"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/postgres"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/reddit"
	redisadapter "github.com/custodia-labs/lowkey/internal/adapters/driven/redis"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/services"
	"github.com/custodia-labs/lowkey/internal/normalisers"
	"github.com/custodia-labs/lowkey/internal/runtime"
)

const generationCheckTimeout = 15 * time.Second

// Config selects the adapters. Empty URLs and paths disable the backend.
type Config struct {
	HarvestConfigPath string // YAML or TOML harvest config, defaults apply when empty
	OutputDir         string // Overrides the configured output directory

	RedisURL    string
	DatabaseURL string
	SQLitePath  string

	Generation domain.GenerationSettings

	// RequireGeneration fails Setup when the generation backend is
	// unreachable. Otherwise the failure is logged and the client kept.
	RequireGeneration bool

	Reddit reddit.Config
	Logger *slog.Logger
}

// Infra holds the wired adapters.
type Infra struct {
	Services *runtime.Services
	Store    driven.CatalogStore
	Lock     driven.DistributedLock
	Streamer driven.ChatStreamer // nil when no provider is configured

	Redis *redis.Client // nil without REDIS_URL
	DB    *postgres.DB  // nil without DATABASE_URL

	source      driven.DocumentSource
	normalisers driven.NormaliserRegistry
	logger      *slog.Logger
	closers     []func() error
}

// Setup connects the configured backends. On error everything opened so far
// is closed again.
func Setup(ctx context.Context, cfg Config) (*Infra, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	infra := &Infra{
		source:      reddit.NewSource(cfg.Reddit, logger),
		normalisers: normalisers.DefaultRegistry(),
		logger:      logger,
	}

	if err := infra.setup(ctx, cfg); err != nil {
		_ = infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infra) setup(ctx context.Context, cfg Config) error {
	harvestCfg := domain.DefaultHarvestConfig()
	if cfg.HarvestConfigPath != "" {
		loaded, err := config.Load(cfg.HarvestConfigPath)
		if err != nil {
			return err
		}
		harvestCfg = loaded
		i.logger.Info("harvest config loaded", "path", cfg.HarvestConfigPath, "cities", len(harvestCfg.Cities))
	}
	if cfg.OutputDir != "" {
		harvestCfg.OutputDir = cfg.OutputDir
	}
	i.Services = runtime.NewServices(harvestCfg)
	i.closers = append(i.closers, i.Services.Close)

	if cfg.RedisURL != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		i.Redis = client
		i.closers = append(i.closers, client.Close)
		i.logger.Info("redis connected")
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		i.closers = append(i.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		i.DB = db
		i.logger.Info("postgres connected and schema initialized")
	}

	switch {
	case i.Redis != nil:
		i.Lock = redisadapter.NewLock(i.Redis)
		i.logger.Info("using redis distributed lock")
	case i.DB != nil:
		i.Lock = postgres.NewAdvisoryLock(i.DB)
		i.logger.Info("using postgres advisory lock")
	default:
		i.Lock = memory.NewLock()
		i.logger.Info("using in-process lock")
	}

	var targets []archive.Target
	if i.DB != nil {
		targets = append(targets, archive.Target{Name: "postgres", Store: postgres.NewPlaceStore(i.DB)})
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite archive: %w", err)
		}
		i.closers = append(i.closers, store.Close)
		targets = append(targets, archive.Target{Name: "sqlite", Store: store})
	}
	i.Store = archive.New(filestore.NewCatalogStore(harvestCfg.OutputDir), i.logger, targets...)

	return i.setupGeneration(ctx, cfg)
}

func (i *Infra) setupGeneration(ctx context.Context, cfg Config) error {
	factory := ai.NewFactory()

	generator, err := factory.CreateGenerationService(&cfg.Generation)
	if err != nil {
		return fmt.Errorf("failed to create generation service: %w", err)
	}
	if generator == nil {
		if cfg.RequireGeneration {
			return fmt.Errorf("no generation provider configured: %w", domain.ErrServiceUnavailable)
		}
		i.logger.Warn("no generation provider configured, harvests are disabled")
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, generationCheckTimeout)
	defer cancel()

	if cfg.RequireGeneration {
		if err := i.Services.ValidateAndSetGeneration(checkCtx, generator); err != nil {
			return fmt.Errorf("generation service unavailable: %w", err)
		}
	} else {
		if err := generator.HealthCheck(checkCtx); err != nil {
			i.logger.Warn("generation health check failed", "model", generator.Model(), "error", err)
		}
		i.Services.SetGenerationService(generator)
	}
	i.logger.Info("generation service ready", "provider", cfg.Generation.Provider, "model", generator.Model())

	streamer, err := factory.CreateChatStreamer(&cfg.Generation)
	if err != nil {
		return fmt.Errorf("failed to create chat streamer: %w", err)
	}
	i.Streamer = streamer
	return nil
}

// Harvester builds the harvest orchestrator over the wired adapters.
func (i *Infra) Harvester() *services.Harvester {
	return services.NewHarvester(services.HarvesterConfig{
		Source:      i.source,
		Store:       i.Store,
		Normalisers: i.normalisers,
		Lock:        i.Lock,
		Services:    i.Services,
		Logger:      i.logger,
	})
}

// Close releases everything Setup opened, in reverse order.
func (i *Infra) Close() error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
