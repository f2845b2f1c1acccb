package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local DistributedLock with TTL expiry.
type Lock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewLock creates an empty lock table.
func NewLock() *Lock {
	return &Lock{
		held:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expires, ok := l.held[name]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	expires, ok := l.held[name]
	if !ok || !now.Before(expires) {
		return fmt.Errorf("lock %s not held", name)
	}
	l.held[name] = now.Add(ttl)
	return nil
}

func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
