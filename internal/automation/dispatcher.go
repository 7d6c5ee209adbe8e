package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/logger"
)

// DefaultMaxRetries bounds how many times the queue processor retries a
// failed send before marking the item failed for good.
const DefaultMaxRetries = 3

// Dispatcher turns trigger events into queue writes. It runs synchronously
// inside the caller's request; there is no in-process scheduler.
type Dispatcher struct {
	repo       Repository
	queue      Enqueuer
	maxRetries int
	nowFn      func() time.Time
}

// NewDispatcher creates a trigger dispatcher.
func NewDispatcher(repo Repository, queue Enqueuer) *Dispatcher {
	return &Dispatcher{repo: repo, queue: queue, maxRetries: DefaultMaxRetries, nowFn: time.Now}
}

// SetMaxRetries overrides the retry budget stamped on newly enqueued items.
// Items already in the queue keep the budget they were created with.
func (d *Dispatcher) SetMaxRetries(n int) {
	if n > 0 {
		d.maxRetries = n
	}
}

// Dispatch enqueues one queue item per step of every active automation whose
// trigger matches. Repeated dispatches for the same recipient enqueue again
// on purpose; deduplication is the caller's business.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger domain.TriggerType, recipientEmail, recipientName string) (int, error) {
	if recipientEmail == "" {
		return 0, fmt.Errorf("%w: recipient email is required", ErrValidation)
	}
	if !domain.ValidTrigger(trigger) {
		return 0, fmt.Errorf("%w: unknown trigger %q", ErrValidation, trigger)
	}

	matches, err := d.repo.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return 0, fmt.Errorf("lookup automations for trigger %s: %w", trigger, err)
	}

	now := d.nowFn()
	var items []domain.AutomationQueueItem
	for _, a := range matches {
		items = append(items, d.buildItems(a, recipientEmail, recipientName, now)...)
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := d.queue.InsertBatch(ctx, items); err != nil {
		return 0, fmt.Errorf("enqueue %d items: %w", len(items), err)
	}

	logger.Info("trigger dispatched",
		"trigger", string(trigger),
		"recipient", recipientEmail,
		"automations", len(matches),
		"enqueued", len(items))
	return len(items), nil
}

// DispatchByID looks one automation up directly and enqueues its steps for
// an arbitrary recipient. This path intentionally skips the status check, so
// paused automations remain manually triggerable. Do not "fix" this without
// product sign-off; operators rely on it for one-off sends.
func (d *Dispatcher) DispatchByID(ctx context.Context, automationID, recipientEmail, recipientName string) (int, error) {
	if recipientEmail == "" {
		return 0, fmt.Errorf("%w: recipient email is required", ErrValidation)
	}

	a, err := d.repo.Get(ctx, automationID)
	if err != nil {
		return 0, err
	}

	items := d.buildItems(*a, recipientEmail, recipientName, d.nowFn())
	if len(items) == 0 {
		return 0, nil
	}
	if err := d.queue.InsertBatch(ctx, items); err != nil {
		return 0, fmt.Errorf("enqueue %d items: %w", len(items), err)
	}

	logger.Info("manual trigger dispatched",
		"automation_id", automationID,
		"recipient", recipientEmail,
		"enqueued", len(items))
	return len(items), nil
}

// buildItems materializes one scheduled queue item per step. Subject and
// body are copied verbatim; personalization happens at send time.
func (d *Dispatcher) buildItems(a domain.EmailAutomation, email, name string, now time.Time) []domain.AutomationQueueItem {
	items := make([]domain.AutomationQueueItem, len(a.Steps))
	for i, step := range a.Steps {
		items[i] = domain.AutomationQueueItem{
			ID:             uuid.New().String(),
			AutomationID:   a.ID,
			AutomationName: a.Name,
			StepID:         step.ID,
			StepOrder:      step.Order,
			RecipientEmail: email,
			RecipientName:  name,
			Subject:        step.Subject,
			Body:           step.Body,
			Status:         domain.QueueScheduled,
			ScheduledFor:   now.Add(step.Delay()),
			MaxRetries:     d.maxRetries,
			CreatedAt:      now,
		}
	}
	return items
}
