package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Change is one field delta observed during a submission.
type Change struct {
	Field    string
	Section  string
	OldValue string
	NewValue string
}

// Recorder turns observed changes into audit entries. By default it writes
// synchronously; with an async buffer, writes are handed to a background
// worker so the submission path does not block on audit I/O. The worker
// drains the buffer on Close.
type Recorder struct {
	store Store
	log   *slog.Logger
	now   func() time.Time

	buffer chan []Entry
	wg     sync.WaitGroup
	once   sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithAsyncBuffer makes writes asynchronous through a buffer of the given
// size. Record blocks only when the buffer is full.
func WithAsyncBuffer(size int) RecorderOption {
	return func(r *Recorder) {
		r.buffer = make(chan []Entry, size)
	}
}

// WithClock overrides the entry timestamp source. For tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(store Store, log *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.buffer != nil {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

// Record persists one entry per change. Failures are logged, never returned:
// a record write must not fail because its audit trail could not be stored.
func (r *Recorder) Record(ctx context.Context, recordNumber, actor string, changes []Change) {
	if len(changes) == 0 {
		return
	}
	at := r.now()
	entries := make([]Entry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, Entry{
			ID:           uuid.New(),
			RecordNumber: recordNumber,
			Actor:        actor,
			Field:        c.Field,
			Section:      c.Section,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			At:           at,
		})
	}

	if r.buffer != nil {
		r.buffer <- entries
		return
	}
	if err := r.store.Append(ctx, entries...); err != nil {
		r.log.Error("audit append failed", "record", recordNumber, "entries", len(entries), "error", err)
	}
}

// ForRecord returns the record's history, oldest first.
func (r *Recorder) ForRecord(ctx context.Context, recordNumber string) ([]Entry, error) {
	return r.store.ForRecord(ctx, recordNumber)
}

// Close stops the background worker after draining buffered entries. No-op
// for synchronous recorders.
func (r *Recorder) Close() {
	if r.buffer == nil {
		return
	}
	r.once.Do(func() { close(r.buffer) })
	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for entries := range r.buffer {
		if err := r.store.Append(context.Background(), entries...); err != nil {
			r.log.Error("audit append failed", "entries", len(entries), "error", err)
		}
	}
}
