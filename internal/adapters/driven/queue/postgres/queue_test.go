package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *domain.TaskType:
			*p = r.values[i].(domain.TaskType)
		case *domain.TaskStatus:
			*p = r.values[i].(domain.TaskStatus)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *int:
			*p = r.values[i].(int)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullTime:
			*p = r.values[i].(sql.NullTime)
		}
	}
	return nil
}

func TestScanTask(t *testing.T) {
	now := time.Now().UTC()
	row := fakeRow{values: []any{
		"task-1",
		domain.TaskTypeHarvestCity,
		[]byte(`{"city":"Paris"}`),
		domain.TaskStatusProcessing,
		1,
		3,
		"",
		now,
		now,
		sql.NullTime{Time: now, Valid: true},
		sql.NullTime{},
		now,
	}}

	task, err := scanTask(row)
	if err != nil {
		t.Fatalf("scanTask: %v", err)
	}
	if task.ID != "task-1" || task.City() != "Paris" {
		t.Errorf("unexpected task %+v", task)
	}
	if task.StartedAt == nil || !task.StartedAt.Equal(now) {
		t.Error("expected StartedAt to be set")
	}
	if task.CompletedAt != nil {
		t.Error("expected CompletedAt to be nil")
	}
}

func TestScanTask_BadPayload(t *testing.T) {
	now := time.Now()
	row := fakeRow{values: []any{
		"task-1", domain.TaskTypeHarvestAll, []byte(`{`), domain.TaskStatusPending,
		0, 3, "", now, now, sql.NullTime{}, sql.NullTime{}, now,
	}}

	if _, err := scanTask(row); err == nil {
		t.Error("expected payload error")
	}
}

func TestScanTask_NoRows(t *testing.T) {
	_, err := scanTask(fakeRow{err: sql.ErrNoRows})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	task := domain.NewHarvestAllTask()
	task.MarkProcessing()

	settle(task, "lock held")
	if task.Status != domain.TaskStatusPending {
		t.Errorf("expected pending after first failure, got %s", task.Status)
	}
	if !task.ScheduledFor.After(time.Now()) {
		t.Error("expected retry to be delayed")
	}

	task.Attempts = task.MaxAttempts
	settle(task, "gave up")
	if task.Status != domain.TaskStatusFailed || task.Error != "gave up" {
		t.Errorf("expected failed task, got %s %q", task.Status, task.Error)
	}
}

func TestEnqueue_NilTask(t *testing.T) {
	q := NewQueue(nil)
	if err := q.Enqueue(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
