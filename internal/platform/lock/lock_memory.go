package lock

import (
	"context"
	"sync"
	"time"

	"ncrtrack/internal/platform/metrics"
	"ncrtrack/pkg/platform/sentinel"
)

// MemoryManager implements Manager with per-name channel semaphores. Suitable
// for single-process deployments and tests; shared deployments use the redis
// manager so independent invocations contend on the same lock.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func NewMemoryManager(wait time.Duration) *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (m *MemoryManager) sem(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	sem, ok := m.locks[name]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[name] = sem
	}
	return sem
}

func (m *MemoryManager) Acquire(ctx context.Context, name string) (func(), error) {
	sem := m.sem(name)
	start := time.Now()

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-timer.C:
		metrics.LockBusyTotal.Inc()
		return nil, sentinel.ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
