package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps audit entries in memory. Used in tests and in
// single-process deployments without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStore) ForRecord(_ context.Context, recordNumber string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.RecordNumber == recordNumber {
			out = append(out, e)
		}
	}
	return out, nil
}
