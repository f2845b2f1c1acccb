package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
	"github.com/custodia-labs/lowkey/internal/runtime"
)

// Verify interface compliance
var _ driving.Harvester = (*Harvester)(nil)

// harvestLockPrefix namespaces harvest locks; the scope is a city slug or "all".
const harvestLockPrefix = "harvest:"

// Harvester coordinates the harvest pipeline.
// Per city it runs:
//  1. Render every query pattern with the city
//  2. Collect documents for each query
//  3. Pre-filter, then validate (when enabled)
//  4. Extract and merge once over all admitted documents
//  5. Persist the city catalog
//
// Each run snapshots the harvest configuration from runtime.Services, so a
// configuration reload only affects runs started after it. The request
// limiter is shared by all runs of a Harvester.
type Harvester struct {
	source      driven.DocumentSource
	store       driven.CatalogStore
	normalisers driven.NormaliserRegistry
	lock        driven.DistributedLock
	services    *runtime.Services
	limiter     *rate.Limiter
	logger      *slog.Logger

	lockTTL  time.Duration
	lockPoll time.Duration
}

// HarvesterConfig holds dependencies for Harvester.
type HarvesterConfig struct {
	Source      driven.DocumentSource
	Store       driven.CatalogStore
	Normalisers driven.NormaliserRegistry
	Lock        driven.DistributedLock // Optional: prevents concurrent runs of the same scope
	Services    *runtime.Services
	Logger      *slog.Logger
	LockTTL     time.Duration // TTL of the harvest lock, kept alive while running (default: 30m)
	LockPoll    time.Duration // Retry interval for a city lock held during a multi-city run (default: 5s)
}

// NewHarvester creates a new harvester.
func NewHarvester(cfg HarvesterConfig) *Harvester {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 30 * time.Minute
	}

	lockPoll := cfg.LockPoll
	if lockPoll == 0 {
		lockPoll = 5 * time.Second
	}

	services := cfg.Services
	if services == nil {
		services = runtime.NewServices(nil)
	}

	return &Harvester{
		source:      cfg.Source,
		store:       cfg.Store,
		normalisers: cfg.Normalisers,
		lock:        cfg.Lock,
		services:    services,
		limiter:     rate.NewLimiter(requestLimit(services.HarvestConfig().RequestDelay), 1),
		logger:      logger,
		lockTTL:     lockTTL,
		lockPoll:    lockPoll,
	}
}

// pipeline is the per-run set of stages built from one config snapshot.
type pipeline struct {
	cfg       *domain.HarvestConfig
	collector *Collector
	validator *Validator
	extractor *Extractor
}

func (h *Harvester) newPipeline() (*pipeline, error) {
	generator := h.services.GenerationService()
	if generator == nil {
		return nil, fmt.Errorf("no generation service configured: %w", domain.ErrServiceUnavailable)
	}
	cfg := h.services.HarvestConfig()

	// Concurrent runs share one limiter; a reload changes its rate
	if limit := requestLimit(cfg.RequestDelay); h.limiter.Limit() != limit {
		h.limiter.SetLimit(limit)
	}

	return &pipeline{
		cfg: cfg,
		collector: NewCollector(CollectorConfig{
			Source:      h.source,
			Normalisers: h.normalisers,
			Limiter:     h.limiter,
			Logger:      h.logger,
		}),
		validator: NewValidator(ValidatorConfig{Generator: generator, Logger: h.logger}),
		extractor: NewExtractor(ExtractorConfig{Generator: generator, Logger: h.logger}),
	}, nil
}

// HarvestCity harvests one city and persists its catalog, even when empty.
func (h *Harvester) HarvestCity(ctx context.Context, city string) (*domain.CityResult, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("city is required: %w", domain.ErrInvalidInput)
	}

	p, err := h.newPipeline()
	if err != nil {
		return nil, err
	}

	release, err := h.acquire(ctx, domain.CitySlug(city))
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := h.harvestCity(ctx, p, city)
	if err != nil {
		return nil, err
	}
	if err := h.store.SaveCity(ctx, city, result.Places); err != nil {
		return nil, fmt.Errorf("failed to save city catalog: %w", err)
	}
	return result, nil
}

// HarvestAll harvests every configured city.
func (h *Harvester) HarvestAll(ctx context.Context) (*domain.HarvestRun, error) {
	return h.HarvestCities(ctx, h.services.HarvestConfig().Cities)
}

// HarvestCities harvests the given cities in order, persisting each city
// catalog as it completes, then the combined catalog and the run statistics.
// Each city is harvested under its own city lock as well, waiting for a
// single-city harvest of the same city to finish.
func (h *Harvester) HarvestCities(ctx context.Context, cities []string) (*domain.HarvestRun, error) {
	p, err := h.newPipeline()
	if err != nil {
		return nil, err
	}

	release, err := h.acquire(ctx, "all")
	if err != nil {
		return nil, err
	}
	defer release()

	run := domain.NewHarvestRun()
	h.logger.Info("harvest run starting",
		"run_id", run.ID,
		"cities", len(cities),
		"query_patterns", len(p.cfg.QueryPatterns),
		"total_queries", len(cities)*len(p.cfg.QueryPatterns),
	)

	for i, city := range cities {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("harvest run cancelled: %w", err)
		}

		h.logger.Info("harvesting city", "run_id", run.ID, "city", city, "index", i+1, "of", len(cities))

		result, err := h.harvestLockedCity(ctx, p, city)
		if err != nil {
			return nil, err
		}
		run.Add(result)
	}

	run.Complete()

	if err := h.store.SaveCombined(ctx, run.Places()); err != nil {
		return nil, fmt.Errorf("failed to save combined catalog: %w", err)
	}
	stats := run.Stats()
	if err := h.store.SaveStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save harvest stats: %w", err)
	}

	h.logger.Info("harvest run complete",
		"run_id", run.ID,
		"duration_minutes", stats.DurationMinutes,
		"total_places", stats.TotalPlaces,
	)
	return run, nil
}

func (h *Harvester) harvestLockedCity(ctx context.Context, p *pipeline, city string) (*domain.CityResult, error) {
	release, err := h.acquireWait(ctx, domain.CitySlug(city))
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := h.harvestCity(ctx, p, city)
	if err != nil {
		return nil, err
	}
	if err := h.store.SaveCity(ctx, city, result.Places); err != nil {
		return nil, fmt.Errorf("failed to save city catalog: %w", err)
	}
	return result, nil
}

// LoadCity returns the persisted catalog of a city.
func (h *Harvester) LoadCity(ctx context.Context, city string) ([]*domain.CanonicalPlace, error) {
	return h.store.LoadCity(ctx, strings.TrimSpace(city))
}

// harvestCity runs the query loop and the single extraction pass for a city.
// Only cancellation aborts it.
func (h *Harvester) harvestCity(ctx context.Context, p *pipeline, city string) (*domain.CityResult, error) {
	var admitted []*domain.Document

	for _, query := range p.cfg.Queries(city) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("harvest of %s cancelled: %w", city, err)
		}

		docs, err := p.collector.Collect(ctx, query, p.cfg.PostsPerQuery)
		if err != nil {
			return nil, fmt.Errorf("harvest of %s cancelled: %w", city, err)
		}
		if len(docs) == 0 {
			h.logger.Debug("no documents found", "city", city, "query", query)
			continue
		}

		promising := make([]*domain.Document, 0, len(docs))
		for _, doc := range docs {
			if Admit(doc) {
				promising = append(promising, doc)
			}
		}

		validated := promising
		if p.cfg.Validate {
			validated = make([]*domain.Document, 0, len(promising))
			for _, doc := range promising {
				if p.validator.Validate(ctx, doc).HasRecommendations {
					validated = append(validated, doc)
				}
			}
		}

		h.logger.Debug("query processed",
			"city", city,
			"query", query,
			"found", len(docs),
			"prefiltered", len(promising),
			"validated", len(validated),
		)
		admitted = append(admitted, validated...)
	}

	catalog := NewCatalog()
	for _, doc := range admitted {
		for _, draft := range p.extractor.Extract(ctx, doc) {
			catalog.Merge(draft)
		}
	}

	h.logger.Info("city harvested",
		"city", city,
		"posts", len(admitted),
		"places", catalog.Len(),
	)

	return &domain.CityResult{
		City:       city,
		PostsCount: len(admitted),
		Places:     catalog.Places(),
	}, nil
}

// acquireWait is acquire, retrying while another harvest holds the scope.
func (h *Harvester) acquireWait(ctx context.Context, scope string) (func(), error) {
	for logged := false; ; logged = true {
		release, err := h.acquire(ctx, scope)
		if !errors.Is(err, domain.ErrHarvestInProgress) {
			return release, err
		}
		if !logged {
			h.logger.Info("waiting for harvest lock", "lock", harvestLockPrefix+scope)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for harvest lock cancelled: %w", ctx.Err())
		case <-time.After(h.lockPoll):
		}
	}
}

// acquire takes the harvest lock for a scope and keeps it alive until the
// returned release func is called. Without a lock it is a no-op.
func (h *Harvester) acquire(ctx context.Context, scope string) (func(), error) {
	if h.lock == nil {
		return func() {}, nil
	}

	name := harvestLockPrefix + scope
	acquired, err := h.lock.Acquire(ctx, name, h.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire harvest lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrHarvestInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(h.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.lock.Extend(ctx, name, h.lockTTL); err != nil {
					h.logger.Warn("failed to extend harvest lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		// ctx may already be cancelled here
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.lock.Release(releaseCtx, name); err != nil {
			h.logger.Warn("failed to release harvest lock", "lock", name, "error", err)
		}
	}, nil
}
