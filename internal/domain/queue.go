package domain

import "time"

// QueueStatus is the state of a queued send. Transitions are monotonic:
// scheduled → processing → {sent|failed}, scheduled → cancelled, and a
// processing item may fall back to scheduled (retry or stale-claim
// recovery). Terminal states never transition.
type QueueStatus string

const (
	QueueScheduled  QueueStatus = "scheduled"
	QueueProcessing QueueStatus = "processing"
	QueueSent       QueueStatus = "sent"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s QueueStatus) Terminal() bool {
	return s == QueueSent || s == QueueFailed || s == QueueCancelled
}

// CanTransitionTo reports whether moving from s to next preserves the
// one-way transition invariant.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case QueueScheduled:
		return next == QueueProcessing || next == QueueCancelled
	case QueueProcessing:
		return next == QueueSent || next == QueueFailed || next == QueueScheduled
	}
	return false
}

// AutomationQueueItem is one scheduled (or resolved) send instance of an
// automation step for a specific recipient. Recipient identity is copied,
// not referenced, so queue history survives subscriber deletion.
type AutomationQueueItem struct {
	ID             string      `json:"id" db:"id"`
	AutomationID   string      `json:"automation_id" db:"automation_id"`
	AutomationName string      `json:"automation_name" db:"automation_name"`
	StepID         string      `json:"step_id" db:"step_id"`
	StepOrder      int         `json:"step_order" db:"step_order"`
	RecipientEmail string      `json:"recipient_email" db:"recipient_email"`
	RecipientName  string      `json:"recipient_name" db:"recipient_name"`
	Subject        string      `json:"subject" db:"subject"`
	Body           string      `json:"body" db:"body"`
	Status         QueueStatus `json:"status" db:"status"`
	ScheduledFor   time.Time   `json:"scheduled_for" db:"scheduled_for"`
	SentAt         *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	Error          string      `json:"error,omitempty" db:"error"`
	RetryCount     int         `json:"retry_count" db:"retry_count"`
	MaxRetries     int         `json:"max_retries" db:"max_retries"`
	LastAttemptAt  *time.Time  `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// QueueStats aggregates the queue for the stats endpoint.
type QueueStats struct {
	Total      int `json:"total"`
	Scheduled  int `json:"scheduled"`
	Due        int `json:"due"`
	Processing int `json:"processing"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}
