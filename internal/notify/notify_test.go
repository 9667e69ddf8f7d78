package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ncrtrack/internal/notify"
)

func TestMemoryPublisher(t *testing.T) {
	m := notify.NewMemory()

	m.Publish(context.Background(), notify.Event{
		RecordNumber: "0001/2025",
		Kind:         notify.KindCreated,
		Actor:        "intake@example.com",
		At:           time.Now(),
	})
	m.Publish(context.Background(), notify.Event{
		RecordNumber: "0001/2025",
		Kind:         notify.KindStatusChanged,
		Payload:      map[string]string{"from": "Intake", "to": "Quality Review"},
	})

	events := m.Events()
	assert.Len(t, events, 2)
	assert.Equal(t, notify.KindCreated, events[0].Kind)
	assert.Equal(t, "Quality Review", events[1].Payload["to"])

	// Events() hands out a copy.
	events[0].RecordNumber = "mutated"
	assert.Equal(t, "0001/2025", m.Events()[0].RecordNumber)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := notify.NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Publish(context.Background(), notify.Event{
		RecordNumber: "0001/2025",
		Kind:         notify.KindUpdated,
		Actor:        "q@example.com",
	})
	l.Close()

	out := buf.String()
	assert.Contains(t, out, "0001/2025")
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "q@example.com")
}
