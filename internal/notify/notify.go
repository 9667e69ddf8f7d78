// Package notify publishes record lifecycle events for downstream consumers
// (mail digests, dashboards). Publishing is fire-and-forget: a failed publish
// is logged and never fails the submission that produced it.
package notify

import (
	"context"
	"time"
)

// Kind classifies a lifecycle event.
type Kind string

const (
	KindCreated       Kind = "created"
	KindUpdated       Kind = "updated"
	KindStatusChanged Kind = "status_changed"
)

// Event is one record lifecycle notification.
type Event struct {
	RecordNumber string            `json:"record_number"`
	Kind         Kind              `json:"kind"`
	Actor        string            `json:"actor"`
	Payload      map[string]string `json:"payload,omitempty"`
	At           time.Time         `json:"at"`
}

// Publisher emits events. Implementations must not block the caller on
// delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}
