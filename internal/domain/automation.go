package domain

import "time"

// TriggerType names the external events that can start an automation.
type TriggerType string

const (
	TriggerNewsletterSignup TriggerType = "newsletter_signup"
	TriggerPurchase         TriggerType = "purchase"
	TriggerCoachingInquiry  TriggerType = "coaching_inquiry"
	TriggerContactForm      TriggerType = "contact_form"
	TriggerManual           TriggerType = "manual"
)

// ValidTrigger reports whether t is a known trigger type.
func ValidTrigger(t TriggerType) bool {
	switch t {
	case TriggerNewsletterSignup, TriggerPurchase, TriggerCoachingInquiry,
		TriggerContactForm, TriggerManual:
		return true
	}
	return false
}

// AutomationStatus is the lifecycle state of an automation definition.
type AutomationStatus string

const (
	AutomationActive AutomationStatus = "active"
	AutomationPaused AutomationStatus = "paused"
)

// AutomationStep is one email in an automation, delayed relative to the
// trigger event. Order always mirrors the step's index in the parent slice;
// client-provided order values are overwritten on save.
type AutomationStep struct {
	ID         string `json:"id"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Order      int    `json:"order"`
}

// Delay returns the step's offset from the trigger time.
func (s AutomationStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// EmailAutomation is a trigger-bound, ordered sequence of timed email steps.
type EmailAutomation struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description string           `json:"description,omitempty" db:"description"`
	Trigger     TriggerType      `json:"trigger" db:"trigger_type"`
	Status      AutomationStatus `json:"status" db:"status"`
	Steps       []AutomationStep `json:"steps"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
