package domain

import "time"

// EngagementLevel buckets a subscriber's email interaction history.
type EngagementLevel string

const (
	EngagementNew      EngagementLevel = "new"
	EngagementActive   EngagementLevel = "active"
	EngagementLapsing  EngagementLevel = "lapsing"
	EngagementInactive EngagementLevel = "inactive"
)

// Subscriber is a read-only snapshot of an email recipient as seen by the
// segmentation and automation core. The import/export pipeline that maintains
// these rows lives outside this module.
type Subscriber struct {
	ID              string          `json:"id" db:"id"`
	Email           string          `json:"email" db:"email"`
	Name            string          `json:"name" db:"name"`
	Source          string          `json:"source" db:"source"`
	Tags            []string        `json:"tags" db:"tags"`
	SubscribedAt    time.Time       `json:"subscribed_at" db:"subscribed_at"`
	EngagementScore float64         `json:"engagement_score" db:"engagement_score"`
	EngagementLevel EngagementLevel `json:"engagement_level" db:"engagement_level"`
	EmailsReceived  int             `json:"emails_received" db:"emails_received"`
	LastEmailedAt   *time.Time      `json:"last_emailed_at" db:"last_emailed_at"`
	LastOpenedAt    *time.Time      `json:"last_opened_at" db:"last_opened_at"`
	Subscribed      bool            `json:"subscribed" db:"subscribed"`
}

// SubscriberPreview is the minimal representation returned by segment
// previews. Handlers must never leak the full snapshot on preview endpoints.
type SubscriberPreview struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name,omitempty"`
	EngagementScore float64 `json:"engagement_score"`
}

// Preview projects a subscriber onto its preview representation.
func (s Subscriber) Preview() SubscriberPreview {
	return SubscriberPreview{
		ID:              s.ID,
		Email:           s.Email,
		Name:            s.Name,
		EngagementScore: s.EngagementScore,
	}
}
