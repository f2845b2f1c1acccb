package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/lowkey/internal/runtime"
)

func TestHarvestJobs_Submit(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	jobs := NewHarvestJobs(queue, runtime.NewServices(nil), nil)

	task, err := jobs.Submit(context.Background(), " paris ")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeHarvestCity, task.Type)
	assert.Equal(t, "paris", task.City())

	all, err := jobs.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeHarvestAll, all.Type)

	assert.Equal(t, 2, queue.Pending())
}

func TestHarvestJobs_SubmitUnknownCity(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	jobs := NewHarvestJobs(queue, runtime.NewServices(nil), nil)

	_, err := jobs.Submit(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, domain.ErrUnknownCity)
	assert.Equal(t, 0, queue.Pending())
}

func TestHarvestJobs_SubmitQueueError(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	queue.EnqueueFn = func(ctx context.Context, task *domain.Task) error {
		return errors.New("redis down")
	}
	jobs := NewHarvestJobs(queue, runtime.NewServices(nil), nil)

	_, err := jobs.Submit(context.Background(), "")
	assert.ErrorContains(t, err, "redis down")
}

func TestHarvestJobs_GetTask(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	jobs := NewHarvestJobs(queue, runtime.NewServices(nil), nil)

	submitted, err := jobs.Submit(context.Background(), "Rome")
	require.NoError(t, err)

	got, err := jobs.GetTask(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, got.ID)

	_, err = jobs.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
