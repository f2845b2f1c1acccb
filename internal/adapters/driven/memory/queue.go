// Package memory holds single-process queue and lock implementations used
// when no Redis is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*Queue)(nil)

const (
	// pollInterval bounds how late a delayed task or a blocked dequeue notices work.
	pollInterval = 100 * time.Millisecond

	// DefaultRetention matches the task TTL of the Redis queue.
	DefaultRetention = 24 * time.Hour
)

// Queue is an in-process FIFO TaskQueue. Tasks are lost on restart.
// Completed and failed tasks stay readable through GetTask for the
// retention period, then are evicted.
type Queue struct {
	mu        sync.Mutex
	order     []string
	tasks     map[string]*domain.Task
	settled   map[string]time.Time
	retention time.Duration
	notify    chan struct{}
	closed    bool
}

// NewQueue creates an empty queue with the default retention.
func NewQueue() *Queue {
	return NewQueueWithRetention(DefaultRetention)
}

// NewQueueWithRetention creates an empty queue that evicts settled tasks
// once they are older than retention.
func NewQueueWithRetention(retention time.Duration) *Queue {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Queue{
		tasks:     make(map[string]*domain.Task),
		settled:   make(map[string]time.Time),
		retention: retention,
		notify:    make(chan struct{}, 1),
	}
}

// Enqueue stores a copy of the task.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue is closed")
	}
	q.evict()
	t := *task
	q.tasks[t.ID] = &t
	q.order = append(q.order, t.ID)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// DequeueWithTimeout returns the first ready task, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if task := q.next(); task != nil {
			return task, nil
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

func (q *Queue) next() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, id := range q.order {
		task := q.tasks[id]
		if task == nil || !task.IsReady() {
			continue
		}
		q.order = append(q.order[:i:i], q.order[i+1:]...)
		task.MarkProcessing()
		out := *task
		return &out
	}
	return nil
}

// Ack marks the task completed.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	task.MarkCompleted()
	q.settled[taskID] = time.Now()
	q.evict()
	return nil
}

// Nack requeues the task with backoff, or fails it when attempts are used up.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if !task.CanRetry() {
		task.MarkFailed(reason)
		q.settled[taskID] = time.Now()
		q.evict()
		return nil
	}
	task.Retry(reason)
	q.order = append(q.order, taskID)
	return nil
}

// evict drops settled tasks past retention. Callers hold q.mu.
func (q *Queue) evict() {
	cutoff := time.Now().Add(-q.retention)
	for id, at := range q.settled {
		if at.Before(cutoff) {
			delete(q.settled, id)
			delete(q.tasks, id)
		}
	}
}

// GetTask returns a copy of the task, or nil when unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.evict()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, nil
	}
	out := *task
	return &out, nil
}

// Ping always succeeds.
func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

// Close rejects further enqueues.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
