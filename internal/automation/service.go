package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthside/mailroom/internal/activity"
	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/logger"
)

// Service implements CRUD over automation definitions plus the delete
// cascade into the queue.
type Service struct {
	repo  Repository
	queue QueueCanceller
	audit activity.Recorder
	nowFn func() time.Time
}

// NewService creates an automation service.
func NewService(repo Repository, queue QueueCanceller, audit activity.Recorder) *Service {
	if audit == nil {
		audit = activity.Noop{}
	}
	return &Service{repo: repo, queue: queue, audit: audit, nowFn: time.Now}
}

// StepInput is one submitted step. Any client-provided order is ignored.
type StepInput struct {
	ID         string `json:"id"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// CreateInput carries the user-supplied fields for automation writes.
type CreateInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Trigger     domain.TriggerType `json:"trigger"`
	Steps       []StepInput        `json:"steps"`
}

// List returns all automations.
func (s *Service) List(ctx context.Context) ([]domain.EmailAutomation, error) {
	return s.repo.List(ctx)
}

// Get returns one automation with its steps.
func (s *Service) Get(ctx context.Context, id string) (*domain.EmailAutomation, error) {
	return s.repo.Get(ctx, id)
}

// Create persists a new automation. Status always starts paused; activation
// is a separate, auditable operation.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.EmailAutomation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.nowFn()
	a := &domain.EmailAutomation{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Trigger:     input.Trigger,
		Status:      domain.AutomationPaused,
		Steps:       normalizeSteps(input.Steps),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "automation.created", "automation", a.ID, a.Name)
	return a, nil
}

// Update replaces an automation's definition. Steps are renumbered to their
// submitted array positions; status is not touched here.
func (s *Service) Update(ctx context.Context, id string, input CreateInput) (*domain.EmailAutomation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	a.Name = input.Name
	a.Description = input.Description
	a.Trigger = input.Trigger
	a.Steps = normalizeSteps(input.Steps)
	a.UpdatedAt = s.nowFn()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "automation.updated", "automation", a.ID, a.Name)
	return a, nil
}

// SetStatus activates or pauses an automation. Pausing only prevents future
// dispatches and processing; items already sent stay sent.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	if status != domain.AutomationActive && status != domain.AutomationPaused {
		return fmt.Errorf("%w: status must be active or paused, got %q", ErrValidation, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.audit.Record(ctx, "automation.status_changed", "automation", id, string(status))
	return nil
}

// Delete removes an automation and cancels every queue item still scheduled
// for it. Sent and failed items are untouched so history survives.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	cancelled, err := s.queue.CancelScheduledByAutomation(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel scheduled sends: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info("automation deleted", "automation_id", id, "cancelled_items", cancelled)
	s.audit.Record(ctx, "automation.deleted", "automation", id, fmt.Sprintf("cancelled %d scheduled sends", cancelled))
	return nil
}

// normalizeSteps assigns stable IDs where missing and overwrites order with
// the array position, keeping stored steps contiguous 0..n-1.
func normalizeSteps(inputs []StepInput) []domain.AutomationStep {
	steps := make([]domain.AutomationStep, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		}
		steps[i] = domain.AutomationStep{
			ID:         id,
			DelayDays:  in.DelayDays,
			DelayHours: in.DelayHours,
			Subject:    in.Subject,
			Body:       in.Body,
			Order:      i,
		}
	}
	return steps
}

func validateInput(input CreateInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !domain.ValidTrigger(input.Trigger) {
		return fmt.Errorf("%w: unknown trigger %q", ErrValidation, input.Trigger)
	}
	for i, step := range input.Steps {
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return fmt.Errorf("%w: step %d has a negative delay", ErrValidation, i)
		}
		if step.Subject == "" {
			return fmt.Errorf("%w: step %d is missing a subject", ErrValidation, i)
		}
	}
	return nil
}
