package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.Scheduler = (*Scheduler)(nil)

// schedulerLockName is shared by every scheduler instance
const schedulerLockName = "scheduler"

// Scheduler manages periodic task scheduling.
// It runs on worker nodes and enqueues harvest tasks based on schedules.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate task enqueuing across instances.
type Scheduler struct {
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	store     driven.ScheduleStore
	logger    *slog.Logger

	// Internal state
	mu        sync.RWMutex
	schedules []*domain.ScheduledTask
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	interval  time.Duration

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock  // Optional: distributed lock for multi-instance coordination
	Store        driven.ScheduleStore    // Optional: shares last-run state across instances and restarts
	Schedules    []*domain.ScheduledTask // Recurring tasks (default: daily harvest_all)
	Logger       *slog.Logger
	PollInterval time.Duration // How often to check for due tasks (default: 30s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 60s)
	LockRequired bool          // If true, skip scheduling when lock cannot be acquired
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	schedules := cfg.Schedules
	if schedules == nil {
		schedules = domain.DefaultSchedule(24 * time.Hour)
	}

	return &Scheduler{
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		store:        cfg.Store,
		schedules:    schedules,
		logger:       logger,
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: cfg.LockRequired || cfg.Lock != nil,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval, "schedules", len(s.schedules))

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkAndEnqueue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkAndEnqueue(ctx)
		}
	}
}

// checkAndEnqueue enqueues every due schedule.
// If a distributed lock is configured, it is held for the whole check.
func (s *Scheduler) checkAndEnqueue(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return
			}
		} else if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return
		} else {
			defer func() {
				if err := s.lock.Release(ctx, schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.restore(ctx)

	for _, scheduled := range s.schedules {
		if !scheduled.IsDue() {
			continue
		}

		task := domain.NewTask(scheduled.Type, nil)
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue scheduled task",
				"scheduled_id", scheduled.ID,
				"error", err,
			)
			scheduled.LastError = err.Error()
			continue
		}

		s.logger.Info("enqueued scheduled task",
			"scheduled_id", scheduled.ID,
			"task_id", task.ID,
			"task_type", task.Type,
		)

		scheduled.LastError = ""
		scheduled.UpdateNextRun()
		s.persist(ctx, scheduled)
	}
}

// restore adopts the persisted last run of each configured schedule. The
// configured interval wins over the persisted one. Caller holds s.mu.
func (s *Scheduler) restore(ctx context.Context) {
	if s.store == nil {
		return
	}
	persisted, err := s.store.ListSchedules(ctx)
	if err != nil {
		s.logger.Warn("failed to load schedule state", "error", err)
		return
	}

	byID := make(map[string]*domain.ScheduledTask, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}
	for _, scheduled := range s.schedules {
		p, ok := byID[scheduled.ID]
		if !ok || p.LastRun == nil {
			continue
		}
		if scheduled.LastRun != nil && !p.LastRun.After(*scheduled.LastRun) {
			continue
		}
		lastRun := *p.LastRun
		scheduled.LastRun = &lastRun
		scheduled.NextRun = lastRun.Add(scheduled.Interval)
	}
}

func (s *Scheduler) persist(ctx context.Context, scheduled *domain.ScheduledTask) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSchedule(ctx, scheduled); err != nil {
		s.logger.Warn("failed to save schedule state", "scheduled_id", scheduled.ID, "error", err)
	}
}

// Schedules returns a copy of the configured schedules.
func (s *Scheduler) Schedules() []domain.ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduledTask, len(s.schedules))
	for i, scheduled := range s.schedules {
		out[i] = *scheduled
	}
	return out
}

// TriggerNow immediately enqueues a scheduled task (ignoring schedule).
func (s *Scheduler) TriggerNow(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	var scheduled *domain.ScheduledTask
	for _, candidate := range s.schedules {
		if candidate.ID == id {
			scheduled = candidate
			break
		}
	}
	s.mu.RUnlock()

	if scheduled == nil {
		return nil, domain.ErrNotFound
	}

	task := domain.NewTask(scheduled.Type, nil)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("manually triggered scheduled task",
		"scheduled_id", scheduled.ID,
		"task_id", task.ID,
	)

	return task, nil
}
