package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
	"github.com/custodia-labs/lowkey/internal/runtime"
)

// Ensure harvestJobs implements HarvestJobs
var _ driving.HarvestJobs = (*harvestJobs)(nil)

type harvestJobs struct {
	queue    driven.TaskQueue
	services *runtime.Services
	logger   *slog.Logger
}

// NewHarvestJobs creates the service that submits harvests to the workers.
// Only cities from the current harvest configuration are accepted.
func NewHarvestJobs(queue driven.TaskQueue, services *runtime.Services, logger *slog.Logger) driving.HarvestJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &harvestJobs{
		queue:    queue,
		services: services,
		logger:   logger,
	}
}

// Submit enqueues a harvest of one city, or of all cities when city is empty
func (j *harvestJobs) Submit(ctx context.Context, city string) (*domain.Task, error) {
	city = strings.TrimSpace(city)

	var task *domain.Task
	if city == "" {
		task = domain.NewHarvestAllTask()
	} else {
		if !j.services.HarvestConfig().HasCity(city) {
			return nil, fmt.Errorf("%q: %w", city, domain.ErrUnknownCity)
		}
		task = domain.NewHarvestCityTask(city)
	}

	if err := j.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue harvest: %w", err)
	}

	j.logger.Info("harvest submitted", "task_id", task.ID, "task_type", task.Type, "city", city)
	return task, nil
}

// GetTask returns the state of a submitted harvest
func (j *harvestJobs) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := j.queue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}
