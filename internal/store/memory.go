package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ncrtrack/internal/platform/lock"
	"ncrtrack/pkg/platform/sentinel"
)

// Memory is the in-process TableStore. It models the tabular backend
// directly: a header slice per table plus rows kept in insertion order.
// A RWMutex guards the maps; logical write serialization with busy semantics
// comes from the lock manager, same as the postgres implementation.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	locks  lock.Manager
}

type memTable struct {
	headers []string
	rows    []Row
}

func NewMemory(locks lock.Manager) *Memory {
	return &Memory{
		tables: make(map[string]*memTable),
		locks:  locks,
	}
}

func (s *Memory) EnsureTable(_ context.Context, table string, headers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; ok {
		return nil
	}
	s.tables[table] = &memTable{headers: append([]string(nil), headers...)}
	return nil
}

func (s *Memory) Headers(_ context.Context, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
	}
	return append([]string(nil), t.headers...), nil
}

func (s *Memory) AddColumn(_ context.Context, table, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
	}
	for _, h := range t.headers {
		if h == column {
			return nil
		}
	}
	t.headers = append(t.headers, column)
	for _, row := range t.rows {
		row[column] = ""
	}
	return nil
}

func (s *Memory) RemoveColumn(_ context.Context, table, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
	}
	if len(t.rows) > 0 {
		return fmt.Errorf("remove column %q from populated table %q: %w", column, table, sentinel.ErrConflict)
	}
	headers := t.headers[:0]
	for _, h := range t.headers {
		if h != column {
			headers = append(headers, h)
		}
	}
	t.headers = headers
	return nil
}

func (s *Memory) Find(_ context.Context, table string, filters Filters, opts *FindOptions) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return []Row{}, nil
	}

	results := make([]Row, 0)
	for _, row := range t.rows {
		if matchRow(row, filters) {
			results = append(results, cloneRow(row))
		}
	}
	return sortAndLimit(results, opts), nil
}

func (s *Memory) Insert(ctx context.Context, table string, rows ...Row) (InsertResult, error) {
	var result InsertResult
	err := s.WithTableLock(ctx, table, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, ok := s.tables[table]
		if !ok {
			return fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
		}
		for _, sparse := range rows {
			t.rows = append(t.rows, alignRow(t.headers, sparse))
		}
		result = InsertResult{
			RowsInserted: len(rows),
			LastPosition: len(t.rows) + 1,
		}
		return nil
	})
	return result, err
}

func (s *Memory) Update(ctx context.Context, table string, filters Filters, patch Row) (UpdateResult, error) {
	var result UpdateResult
	err := s.WithTableLock(ctx, table, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, ok := s.tables[table]
		if !ok {
			return fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
		}
		columns := make(map[string]bool, len(t.headers))
		for _, h := range t.headers {
			columns[h] = true
		}
		for _, row := range t.rows {
			if !matchRow(row, filters) {
				continue
			}
			// Cell-by-cell application, best-effort-atomic per lock hold.
			for field, value := range patch {
				if !columns[field] {
					continue
				}
				if _, isTime := value.(time.Time); isTime {
					row[field] = value
				} else {
					row[field] = canonical(value)
				}
			}
			result.RowsUpdated++
		}
		return nil
	})
	return result, err
}

func (s *Memory) Delete(ctx context.Context, table string, filters Filters) (DeleteResult, error) {
	var result DeleteResult
	err := s.WithTableLock(ctx, table, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, ok := s.tables[table]
		if !ok {
			return fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
		}
		// Walk from the end toward the start so removal keeps indices valid.
		for i := len(t.rows) - 1; i >= 0; i-- {
			if matchRow(t.rows[i], filters) {
				t.rows = append(t.rows[:i], t.rows[i+1:]...)
				result.RowsDeleted++
			}
		}
		return nil
	})
	return result, err
}

func (s *Memory) Batch(ctx context.Context, table string, fn BatchFunc, batchSize int) (BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var result BatchResult
	for offset := 0; ; offset += batchSize {
		window := s.window(table, offset, batchSize)
		if len(window) == 0 {
			break
		}
		out, err := fn(window, offset)
		if err != nil {
			return result, err
		}
		result.Results = append(result.Results, out)
		result.ProcessedRows += len(window)

		// Yield between windows so long scans do not starve other work.
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return result, nil
}

func (s *Memory) window(table string, offset, size int) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok || offset >= len(t.rows) {
		return nil
	}
	end := offset + size
	if end > len(t.rows) {
		end = len(t.rows)
	}
	window := make([]Row, 0, end-offset)
	for _, row := range t.rows[offset:end] {
		window = append(window, cloneRow(row))
	}
	return window
}

func (s *Memory) ValidateStructure(ctx context.Context, table string, required []string) (ValidationResult, error) {
	headers, err := s.Headers(ctx, table)
	if err != nil {
		return ValidationResult{}, err
	}
	return validateHeaders(headers, required), nil
}

func (s *Memory) WithTableLock(ctx context.Context, table string, fn func(ctx context.Context) error) error {
	if lock.Held(ctx, table) {
		return fn(ctx)
	}
	release, err := s.locks.Acquire(ctx, table)
	if err != nil {
		return err
	}
	defer release()
	return fn(lock.WithHeld(ctx, table))
}

func validateHeaders(headers, required []string) ValidationResult {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}
	var missing []string
	for _, want := range required {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	return ValidationResult{Valid: len(missing) == 0, Missing: missing}
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
