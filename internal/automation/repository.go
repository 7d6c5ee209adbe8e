package automation

import (
	"context"

	"github.com/hearthside/mailroom/internal/domain"
)

// Repository defines the data access contract for automation definitions.
type Repository interface {
	// List returns every automation with its steps.
	List(ctx context.Context) ([]domain.EmailAutomation, error)

	// Get returns one automation. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailAutomation, error)

	// ListActiveByTrigger returns automations with status=active and the
	// given trigger type, steps included in stored order.
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.EmailAutomation, error)

	// Create persists a new automation and its steps.
	Create(ctx context.Context, a *domain.EmailAutomation) error

	// Update replaces an automation's definition and steps atomically.
	// Returns ErrNotFound if the automation doesn't exist.
	Update(ctx context.Context, a *domain.EmailAutomation) error

	// UpdateStatus changes only the status column. Returns ErrNotFound if
	// the automation doesn't exist.
	UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error

	// Delete removes an automation and its steps. Queue rows are handled by
	// the service's cascade, not here.
	Delete(ctx context.Context, id string) error
}

// Enqueuer appends scheduled sends to the queue. All items of one dispatch
// are inserted in a single transaction.
type Enqueuer interface {
	InsertBatch(ctx context.Context, items []domain.AutomationQueueItem) error
}

// QueueCanceller bulk-cancels still-scheduled queue items for an automation.
// Items in terminal states are untouched, preserving send history.
type QueueCanceller interface {
	CancelScheduledByAutomation(ctx context.Context, automationID string) (int64, error)
}
