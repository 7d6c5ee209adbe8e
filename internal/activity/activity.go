// Package activity provides the fire-and-forget audit trail used on segment
// and automation mutations. Recording is best effort: failures are logged
// and never surfaced to the caller.
package activity

import (
	"context"
	"time"
)

// Entry is one recorded audit row.
type Entry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder writes one audit entry. Implementations must not block the
// calling request path on failure.
type Recorder interface {
	Record(ctx context.Context, action, entityType, entityID, detail string)
}

// Reader pages through recorded entries, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Noop discards all entries. Useful default for tests and one-shot tools.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(context.Context, string, string, string, string) {}
