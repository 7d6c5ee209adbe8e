package segment

import (
	"context"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
)

// Repository defines the data access contract for segments.
type Repository interface {
	// List returns every segment with its cached count (no recompute).
	List(ctx context.Context) ([]domain.Segment, error)

	// Get returns a single segment. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Segment, error)

	// Create persists a new segment.
	Create(ctx context.Context, s *domain.Segment) error

	// Update replaces name, description, rules, and count fields.
	// Returns ErrNotFound if the segment doesn't exist.
	Update(ctx context.Context, s *domain.Segment) error

	// Delete removes a segment. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// UpdateCount persists a freshly calculated count without touching
	// the rest of the row.
	UpdateCount(ctx context.Context, id string, count int, at time.Time) error
}

// SubscriberRepository is the read-only subscriber capability the matcher
// consumes. The import/export pipeline owns writes.
type SubscriberRepository interface {
	// ListSubscribed returns every opted-in subscriber.
	ListSubscribed(ctx context.Context) ([]domain.Subscriber, error)

	// GetByID returns one subscriber regardless of opt-in state.
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
}
