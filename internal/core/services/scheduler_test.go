package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven/mocks"
)

func dueSchedule(id string) *domain.ScheduledTask {
	s := domain.NewScheduledTask(id, "Test "+id, domain.TaskTypeHarvestAll, time.Hour)
	s.NextRun = time.Now().Add(-time.Minute)
	return s
}

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue:    mocks.NewMockTaskQueue(),
		PollInterval: time.Minute,
	})

	if s == nil {
		t.Fatal("expected non-nil scheduler")
	}
	if s.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", s.interval)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue: mocks.NewMockTaskQueue(),
	})

	if s.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", s.interval)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
	if len(s.schedules) != 1 || s.schedules[0].Type != domain.TaskTypeHarvestAll {
		t.Errorf("expected default harvest_all schedule, got %+v", s.schedules)
	}
	if s.lockRequired {
		t.Error("lock should not be required without a lock")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue:    mocks.NewMockTaskQueue(),
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	// Stop again should be no-op
	s.Stop()
}

func TestScheduler_CheckAndEnqueue(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	notDue := domain.NewScheduledTask("s2", "Later", domain.TaskTypeHarvestAll, time.Hour)
	disabled := dueSchedule("s3")
	disabled.Enabled = false

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1"), notDue, disabled},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", queue.Pending())
	}

	task, _ := queue.DequeueWithTimeout(context.Background(), 1)
	if task.Type != domain.TaskTypeHarvestAll {
		t.Errorf("expected harvest_all task, got %s", task.Type)
	}

	// The due schedule moved to its next interval
	schedules := s.Schedules()
	if schedules[0].LastRun == nil {
		t.Error("expected LastRun to be recorded")
	}
	if !schedules[0].NextRun.After(time.Now()) {
		t.Error("expected NextRun in the future")
	}

	// A second check finds nothing due
	s.checkAndEnqueue(context.Background())
	if queue.Pending() != 0 {
		t.Errorf("expected no new tasks, got %d", queue.Pending())
	}
}

func TestScheduler_CheckAndEnqueue_EnqueueError(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	queue.EnqueueFn = func(ctx context.Context, task *domain.Task) error {
		return errors.New("queue unavailable")
	}

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	schedules := s.Schedules()
	if schedules[0].LastError != "queue unavailable" {
		t.Errorf("expected last error 'queue unavailable', got %q", schedules[0].LastError)
	}
	// Still due, so it retries on the next tick
	if schedules[0].LastRun != nil {
		t.Error("failed schedule must not advance")
	}
}

func TestScheduler_LockHeldElsewhere(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld("scheduler", time.Minute)

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 0 {
		t.Errorf("expected no tasks while lock is held, got %d", queue.Pending())
	}
}

func TestScheduler_LockAcquiredAndReleased(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 1 {
		t.Errorf("expected 1 task, got %d", queue.Pending())
	}
	if lock.IsHeld("scheduler") {
		t.Error("expected scheduler lock to be released")
	}
}

func TestScheduler_LockError(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 0 {
		t.Errorf("expected cycle to be skipped, got %d tasks", queue.Pending())
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Schedules: domain.DefaultSchedule(24 * time.Hour),
	})

	task, err := s.TriggerNow(context.Background(), "catalog-harvest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type != domain.TaskTypeHarvestAll {
		t.Errorf("expected harvest_all, got %s", task.Type)
	}
	if queue.Pending() != 1 {
		t.Errorf("expected 1 queued task, got %d", queue.Pending())
	}
}

func TestScheduler_TriggerNow_NotFound(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TaskQueue: mocks.NewMockTaskQueue()})

	_, err := s.TriggerNow(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue:    mocks.NewMockTaskQueue(),
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	time.Sleep(200 * time.Millisecond)

	// The loop has exited; Stop cleans up state
	s.Stop()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped after context cancellation")
	}
}

type fakeScheduleStore struct {
	saved   map[string]domain.ScheduledTask
	listErr error
}

func (f *fakeScheduleStore) ListSchedules(ctx context.Context) ([]*domain.ScheduledTask, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.ScheduledTask
	for _, s := range f.saved {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

func (f *fakeScheduleStore) SaveSchedule(ctx context.Context, schedule *domain.ScheduledTask) error {
	if f.saved == nil {
		f.saved = make(map[string]domain.ScheduledTask)
	}
	f.saved[schedule.ID] = *schedule
	return nil
}

func TestScheduler_PersistsRuns(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	store := &fakeScheduleStore{}

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Store:     store,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	saved, ok := store.saved["s1"]
	if !ok {
		t.Fatal("expected schedule state to be saved")
	}
	if saved.LastRun == nil {
		t.Error("expected LastRun to be persisted")
	}
}

func TestScheduler_RestoresRunFromAnotherInstance(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lastRun := time.Now().Add(-10 * time.Minute)
	store := &fakeScheduleStore{saved: map[string]domain.ScheduledTask{
		"s1": {ID: "s1", Type: domain.TaskTypeHarvestAll, Interval: 2 * time.Hour, Enabled: true, LastRun: &lastRun},
	}}

	// Due locally, but another instance ran it ten minutes ago
	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Store:     store,
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 0 {
		t.Fatalf("expected no enqueue, got %d", queue.Pending())
	}
	got := s.Schedules()[0]
	// The configured one hour interval wins over the persisted two hours
	if want := lastRun.Add(time.Hour); !got.NextRun.Equal(want) {
		t.Errorf("expected NextRun %v, got %v", want, got.NextRun)
	}
}

func TestScheduler_StoreErrorStillSchedules(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Store:     &fakeScheduleStore{listErr: errors.New("db down")},
		Schedules: []*domain.ScheduledTask{dueSchedule("s1")},
	})

	s.checkAndEnqueue(context.Background())

	if queue.Pending() != 1 {
		t.Errorf("expected 1 enqueued task, got %d", queue.Pending())
	}
}
