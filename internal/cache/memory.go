package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ncrtrack/internal/platform/metrics"
)

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// Memory is the in-process Cache used for single-node deployments and tests.
// Entries are checked against the TTL on read; expired entries are treated
// as absent and dropped lazily.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.now().Sub(entry.storedAt) > m.ttl {
		metrics.CacheMissesTotal.Inc()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		metrics.CacheMissesTotal.Inc()
		return false, nil
	}
	metrics.CacheHitsTotal.Inc()
	return true, nil
}

func (m *Memory) Put(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, storedAt: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
