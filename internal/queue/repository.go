package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
)

// ErrNotFound is returned for unknown queue item ids.
var ErrNotFound = errors.New("queue item not found")

// ListFilter controls pagination and filtering of queue listings.
type ListFilter struct {
	Status domain.QueueStatus
	Limit  int
	Offset int
}

// Repository defines the data access contract for the send queue.
type Repository interface {
	// InsertBatch appends items in one transaction. A dispatch either
	// enqueues all of its rows or none of them.
	InsertBatch(ctx context.Context, items []domain.AutomationQueueItem) error

	// DueItems returns items with status=scheduled and scheduledFor <= now,
	// oldest first, up to limit.
	DueItems(ctx context.Context, now time.Time, limit int) ([]domain.AutomationQueueItem, error)

	// Claim atomically transitions one item scheduled → processing and
	// stamps lastAttemptAt. Returns false when another worker won the item
	// or its status changed since selection.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)

	// MarkSent finalizes a processing item as sent.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkFailed finalizes a processing item as failed with a
	// human-readable error.
	MarkFailed(ctx context.Context, id string, at time.Time, sendErr string) error

	// Reschedule returns a processing item to scheduled for a later
	// attempt, recording the error and the incremented retry count.
	Reschedule(ctx context.Context, id string, nextAttempt time.Time, sendErr string, retryCount int) error

	// ReleaseStale returns processing items whose claim is older than
	// cutoff back to scheduled. Covers workers that died mid-send.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CancelScheduledByAutomation bulk-cancels still-scheduled items for an
	// automation and reports how many rows changed.
	CancelScheduledByAutomation(ctx context.Context, automationID string) (int64, error)

	// List returns queue items newest first, with the total matching count.
	List(ctx context.Context, f ListFilter) ([]domain.AutomationQueueItem, int, error)

	// Stats aggregates the queue by status, counting due items against now.
	Stats(ctx context.Context, now time.Time) (*domain.QueueStats, error)
}
