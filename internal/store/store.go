// Package store is a generic tabular record store: schema-less rows addressed
// by filter predicates, with a header row defining each table's current field
// set. Writes serialize through a coarse table-scoped lock; reads never block.
package store

import "context"

// Row is a flat field-name → value mapping. Values are strings, numbers, or
// time.Time; absent fields read as the empty string after insertion aligns
// the row to the table header.
type Row map[string]any

// Condition is an operator filter. Supported operators: =, !=, >, >=, <, <=,
// contains, startsWith, endsWith, in. String operators compare
// case-insensitively; `in` expects a slice value.
type Condition struct {
	Op    string
	Value any
}

// Filters maps field names to either a literal (equality) or a Condition.
// All filters are ANDed; a row missing a filtered field never matches.
type Filters map[string]any

// FindOptions control ordering and truncation. Sorting is stable; Limit is
// applied after the sort.
type FindOptions struct {
	OrderBy string
	Desc    bool
	Limit   int
}

type InsertResult struct {
	RowsInserted int
	// LastPosition is the 1-based position of the last row in the table,
	// counting the header as position 1.
	LastPosition int
}

type UpdateResult struct {
	RowsUpdated int
}

type DeleteResult struct {
	RowsDeleted int
}

// BatchFunc processes one read-only window of rows. offset is the 0-based
// index of the window's first data row.
type BatchFunc func(rows []Row, offset int) (any, error)

type BatchResult struct {
	ProcessedRows int
	Results       []any
}

type ValidationResult struct {
	Valid   bool
	Missing []string
}

// TableStore is the persistence contract shared by the memory and postgres
// implementations.
//
// Failure semantics: lock-acquisition timeout (sentinel.ErrBusy, retryable)
// is the only expected error on mutations. Find returns an empty slice for
// "no match" and for an absent table; errors are reserved for backend
// failures.
type TableStore interface {
	// EnsureTable creates the table with the given header if absent.
	EnsureTable(ctx context.Context, table string, headers []string) error

	// Headers returns the table's current field set in column order.
	Headers(ctx context.Context, table string) ([]string, error)

	// AddColumn appends a column. Additive-safe: existing rows read the new
	// field as empty.
	AddColumn(ctx context.Context, table, column string) error

	// RemoveColumn drops a column. Refused while the table holds rows; column
	// removal on populated tables goes through an explicit reorganization
	// path the store does not offer.
	RemoveColumn(ctx context.Context, table, column string) error

	Find(ctx context.Context, table string, filters Filters, opts *FindOptions) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) (InsertResult, error)
	Update(ctx context.Context, table string, filters Filters, patch Row) (UpdateResult, error)
	Delete(ctx context.Context, table string, filters Filters) (DeleteResult, error)

	// Batch paginates read-only access in fixed-size windows without holding
	// the lock, yielding briefly between windows.
	Batch(ctx context.Context, table string, fn BatchFunc, batchSize int) (BatchResult, error)

	ValidateStructure(ctx context.Context, table string, required []string) (ValidationResult, error)

	// WithTableLock runs fn while holding the table's write lock. Store
	// mutations made inside fn see the lock as already held and do not
	// re-acquire it. Used to span identifier generation and the immediately
	// following insert under one acquisition.
	WithTableLock(ctx context.Context, table string, fn func(ctx context.Context) error) error
}
