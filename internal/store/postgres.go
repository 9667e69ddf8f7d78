package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ncrtrack/internal/platform/lock"
	"ncrtrack/pkg/platform/sentinel"
)

// Postgres is the shared TableStore. Every logical table lives in two
// physical tables: a header registry (field set per table, in column order)
// and a row table keyed by (table_name, position) with the row as jsonb.
// Filters run in Go against the decoded rows so the operator semantics stay
// identical to the memory implementation.
type Postgres struct {
	db    *sql.DB
	locks lock.Manager
}

func NewPostgres(db *sql.DB, locks lock.Manager) *Postgres {
	return &Postgres{db: db, locks: locks}
}

// Migrate creates the backing tables. Idempotent; called once at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS table_headers (
			table_name TEXT PRIMARY KEY,
			headers    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS table_rows (
			table_name TEXT NOT NULL,
			position   BIGINT NOT NULL,
			data       JSONB NOT NULL,
			PRIMARY KEY (table_name, position)
		);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	return nil
}

func (s *Postgres) EnsureTable(ctx context.Context, table string, headers []string) error {
	data, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO table_headers (table_name, headers)
		VALUES ($1, $2)
		ON CONFLICT (table_name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, table, data); err != nil {
		return fmt.Errorf("ensure table %q: %w", table, err)
	}
	return nil
}

func (s *Postgres) Headers(ctx context.Context, table string) ([]string, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT headers FROM table_headers WHERE table_name = $1`, table).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read headers for %q: %w", table, err)
	}
	var headers []string
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("decode headers for %q: %w", table, err)
	}
	return headers, nil
}

func (s *Postgres) AddColumn(ctx context.Context, table, column string) error {
	headers, err := s.Headers(ctx, table)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if h == column {
			return nil
		}
	}
	headers = append(headers, column)
	return s.writeHeaders(ctx, table, headers)
}

func (s *Postgres) RemoveColumn(ctx context.Context, table, column string) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM table_rows WHERE table_name = $1`, table).Scan(&count)
	if err != nil {
		return fmt.Errorf("count rows for %q: %w", table, err)
	}
	if count > 0 {
		return fmt.Errorf("remove column %q from populated table %q: %w", column, table, sentinel.ErrConflict)
	}

	headers, err := s.Headers(ctx, table)
	if err != nil {
		return err
	}
	kept := headers[:0]
	for _, h := range headers {
		if h != column {
			kept = append(kept, h)
		}
	}
	return s.writeHeaders(ctx, table, kept)
}

func (s *Postgres) writeHeaders(ctx context.Context, table string, headers []string) error {
	data, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	const query = `
		UPDATE table_headers SET headers = $2, updated_at = now()
		WHERE table_name = $1
	`
	if _, err := s.db.ExecContext(ctx, query, table, data); err != nil {
		return fmt.Errorf("write headers for %q: %w", table, err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, table string, filters Filters, opts *FindOptions) ([]Row, error) {
	rows, _, err := s.scan(ctx, table, filters)
	if err != nil {
		return nil, err
	}
	return sortAndLimit(rows, opts), nil
}

func (s *Postgres) Insert(ctx context.Context, table string, sparse ...Row) (InsertResult, error) {
	var result InsertResult
	err := s.WithTableLock(ctx, table, func(ctx context.Context) error {
		headers, err := s.Headers(ctx, table)
		if err != nil {
			return err
		}

		var last sql.NullInt64
		err = s.db.QueryRowContext(ctx,
			`SELECT max(position) FROM table_rows WHERE table_name = $1`, table).Scan(&last)
		if err != nil {
			return fmt.Errorf("last position for %q: %w", table, err)
		}
		position := last.Int64

		for _, row := range sparse {
			position++
			data, err := json.Marshal(encodeRow(alignRow(headers, row)))
			if err != nil {
				return err
			}
			_, err = s.db.ExecContext(ctx,
				`INSERT INTO table_rows (table_name, position, data) VALUES ($1, $2, $3)`,
				table, position, data)
			if err != nil {
				return fmt.Errorf("insert into %q: %w", table, err)
			}
		}
		result = InsertResult{
			RowsInserted: len(sparse),
			LastPosition: int(position) + 1,
		}
		return nil
	})
	return result, err
}

func (s *Postgres) Update(ctx context.Context, table string, filters Filters, patch Row) (UpdateResult, error) {
	var result UpdateResult
	err := s.WithTableLock(ctx, table, func(ctx context.Context) error {
		headers, err := s.Headers(ctx, table)
		if err != nil {
			return err
		}
		columns := make(map[string]bool, len(headers))
		for _, h := range headers {
			columns[h] = true
		}

		rows, positions, err := s.scan(ctx, table, filters)
		if err != nil {
			return err
		}
		for i, row := range rows {
			for field, value := range patch {
				if columns[field] {
					row[field] = value
				}
			}
			// Whole-row write: one statement per row, so a partially applied
			// patch can never be observed.
			data, err := json.Marshal(encodeRow(row))
			if err != nil {
				return err
			}
			_, err = s.db.ExecContext(ctx,
				`UPDATE table_rows SET data = $3 WHERE table_name = $1 AND position = $2`,
				table, positions[i], data)
			if err != nil {
				return fmt.Errorf("update %q: %w", table, err)
			}
			result.RowsUpdated++
		}
		return nil
	})
	return result, err
}

func (s *Postgres) Delete(ctx context.Context, table string, filters Filters) (DeleteResult, error) {
	var result DeleteResult
	err := s.WithTableLock(ctx, table, func(ctx context.Context) error {
		_, positions, err := s.scan(ctx, table, filters)
		if err != nil {
			return err
		}
		for i := len(positions) - 1; i >= 0; i-- {
			_, err := s.db.ExecContext(ctx,
				`DELETE FROM table_rows WHERE table_name = $1 AND position = $2`,
				table, positions[i])
			if err != nil {
				return fmt.Errorf("delete from %q: %w", table, err)
			}
			result.RowsDeleted++
		}
		return nil
	})
	return result, err
}

func (s *Postgres) Batch(ctx context.Context, table string, fn BatchFunc, batchSize int) (BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var result BatchResult
	for offset := 0; ; offset += batchSize {
		window, err := s.windowQuery(ctx, table, offset, batchSize)
		if err != nil {
			return result, err
		}
		if len(window) == 0 {
			break
		}
		out, err := fn(window, offset)
		if err != nil {
			return result, err
		}
		result.Results = append(result.Results, out)
		result.ProcessedRows += len(window)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return result, nil
}

func (s *Postgres) windowQuery(ctx context.Context, table string, offset, size int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM table_rows WHERE table_name = $1 ORDER BY position LIMIT $2 OFFSET $3`,
		table, size, offset)
	if err != nil {
		return nil, fmt.Errorf("batch window for %q: %w", table, err)
	}
	defer rows.Close()

	var window []Row
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		row, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		window = append(window, row)
	}
	return window, rows.Err()
}

func (s *Postgres) ValidateStructure(ctx context.Context, table string, required []string) (ValidationResult, error) {
	headers, err := s.Headers(ctx, table)
	if err != nil {
		return ValidationResult{}, err
	}
	return validateHeaders(headers, required), nil
}

func (s *Postgres) WithTableLock(ctx context.Context, table string, fn func(ctx context.Context) error) error {
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

// scan reads the whole logical table in position order and filters in Go.
func (s *Postgres) scan(ctx context.Context, table string, filters Filters) ([]Row, []int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, data FROM table_rows WHERE table_name = $1 ORDER BY position`, table)
	if err != nil {
		return nil, nil, fmt.Errorf("scan %q: %w", table, err)
	}
	defer rows.Close()

	matched := make([]Row, 0)
	var positions []int64
	for rows.Next() {
		var position int64
		var data []byte
		if err := rows.Scan(&position, &data); err != nil {
			return nil, nil, err
		}
		row, err := decodeRow(data)
		if err != nil {
			return nil, nil, err
		}
		if matchRow(row, filters) {
			matched = append(matched, row)
			positions = append(positions, position)
		}
	}
	return matched, positions, rows.Err()
}

// encodeRow renders every cell for jsonb storage. Dates become RFC 3339
// strings, which canonical() also produces for comparisons, so operator
// semantics survive the round trip.
func encodeRow(row Row) map[string]string {
	out := make(map[string]string, len(row))
	for field, value := range row {
		out[field] = canonical(value)
	}
	return out
}

func decodeRow(data []byte) (Row, error) {
	var cells map[string]string
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	row := make(Row, len(cells))
	for field, value := range cells {
		row[field] = value
	}
	return row, nil
}
