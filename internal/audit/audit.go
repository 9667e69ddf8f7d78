// Package audit records the field-level change history of records: who
// changed which field from what to what, and when.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one field change on one record.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	RecordNumber string    `json:"record_number"`
	Actor        string    `json:"actor"`
	Field        string    `json:"field"`
	Section      string    `json:"section"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	At           time.Time `json:"at"`
}

// Store persists audit entries. Append-only.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error

	// ForRecord returns the record's entries, oldest first.
	ForRecord(ctx context.Context, recordNumber string) ([]Entry, error)
}
