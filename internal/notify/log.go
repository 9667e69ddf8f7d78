package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Log writes events to the structured log. The default publisher when no
// broker is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Publish(_ context.Context, event Event) {
	l.log.Info("record event",
		"record", event.RecordNumber, "kind", event.Kind, "actor", event.Actor)
}

func (l *Log) Close() {}

// Memory collects events in memory. For tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *Memory) Close() {}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
