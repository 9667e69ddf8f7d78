package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit entries in a dedicated append-only table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit table if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id            UUID PRIMARY KEY,
			record_number TEXT NOT NULL,
			actor         TEXT NOT NULL,
			field         TEXT NOT NULL,
			section       TEXT NOT NULL,
			old_value     TEXT NOT NULL,
			new_value     TEXT NOT NULL,
			at            TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_record
			ON audit_entries (record_number, at);
	`)
	if err != nil {
		return fmt.Errorf("migrate audit table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_entries
			(id, record_number, actor, field, section, old_value, new_value, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.RecordNumber, e.Actor, e.Field, e.Section, e.OldValue, e.NewValue, e.At,
		); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ForRecord(ctx context.Context, recordNumber string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_number, actor, field, section, old_value, new_value, at
		FROM audit_entries
		WHERE record_number = $1
		ORDER BY at, id`, recordNumber)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RecordNumber, &e.Actor, &e.Field, &e.Section,
			&e.OldValue, &e.NewValue, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
