package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthside/mailroom/internal/activity"
	"github.com/hearthside/mailroom/internal/domain"
)

const (
	sampleSize     = 10
	defaultPerPage = 20
	maxPerPage     = 100
)

// Service implements segment business logic. It coordinates the segment
// repository, the subscriber snapshot, and the audit trail. All methods are
// safe for concurrent use if the underlying repositories are.
type Service struct {
	repo  Repository
	subs  SubscriberRepository
	audit activity.Recorder
	nowFn func() time.Time
}

// NewService creates a segment service backed by the given repositories.
func NewService(repo Repository, subs SubscriberRepository, audit activity.Recorder) *Service {
	if audit == nil {
		audit = activity.Noop{}
	}
	return &Service{repo: repo, subs: subs, audit: audit, nowFn: time.Now}
}

// CreateInput carries the user-supplied fields for segment writes.
type CreateInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Rules       *domain.SegmentRules `json:"rules"`
}

// Preview is a paginated, non-persisted view of the subscribers a rule set
// matches, plus a truncated sample for the rule builder UI.
type Preview struct {
	Total       int                        `json:"total"`
	Page        int                        `json:"page"`
	Limit       int                        `json:"limit"`
	Subscribers []domain.SubscriberPreview `json:"subscribers"`
	Sample      []domain.SubscriberPreview `json:"sample"`
}

// List returns all segments with their cached counts. Counts may be stale;
// they are only recomputed on writes and single-item reads.
func (s *Service) List(ctx context.Context) ([]domain.Segment, error) {
	return s.repo.List(ctx)
}

// Get returns one segment with a freshly computed count. The refreshed count
// is persisted so subsequent list reads serve it.
func (s *Service) Get(ctx context.Context, id string) (*domain.Segment, error) {
	seg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	matched, err := s.MatchingSubscribers(ctx, seg.Rules)
	if err != nil {
		return nil, fmt.Errorf("recalculate segment %s: %w", id, err)
	}

	now := s.nowFn()
	seg.CachedCount = len(matched)
	seg.LastCalculatedAt = &now
	if err := s.repo.UpdateCount(ctx, id, seg.CachedCount, now); err != nil {
		return nil, fmt.Errorf("persist segment count: %w", err)
	}
	return seg, nil
}

// Create validates and persists a new segment, computing its count
// synchronously from a full population scan.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Segment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	matched, err := s.MatchingSubscribers(ctx, *input.Rules)
	if err != nil {
		return nil, fmt.Errorf("calculate segment count: %w", err)
	}

	now := s.nowFn()
	seg := &domain.Segment{
		ID:               uuid.New().String(),
		Name:             input.Name,
		Description:      input.Description,
		Rules:            *input.Rules,
		CachedCount:      len(matched),
		LastCalculatedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, seg); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "segment.created", "segment", seg.ID, seg.Name)
	return seg, nil
}

// Update validates and replaces a segment's definition, recomputing its
// count. Prior state is left unchanged on any error.
func (s *Service) Update(ctx context.Context, id string, input CreateInput) (*domain.Segment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	seg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	matched, err := s.MatchingSubscribers(ctx, *input.Rules)
	if err != nil {
		return nil, fmt.Errorf("calculate segment count: %w", err)
	}

	now := s.nowFn()
	seg.Name = input.Name
	seg.Description = input.Description
	seg.Rules = *input.Rules
	seg.CachedCount = len(matched)
	seg.LastCalculatedAt = &now
	seg.UpdatedAt = now
	if err := s.repo.Update(ctx, seg); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "segment.updated", "segment", seg.ID, seg.Name)
	return seg, nil
}

// Delete removes a segment definition. Queue history is untouched; segments
// are filters, not senders.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, "segment.deleted", "segment", id, "")
	return nil
}

// Preview pages through a stored segment's current matches without
// persisting anything; the cached count is not refreshed here.
func (s *Service) Preview(ctx context.Context, id string, page, limit int) (*Preview, error) {
	seg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.EvaluateRules(ctx, seg.Rules, page, limit)
}

// EvaluateRules runs an ad-hoc rule set against the live population for the
// interactive rule builder. Nothing is persisted.
func (s *Service) EvaluateRules(ctx context.Context, rules domain.SegmentRules, page, limit int) (*Preview, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	matched, err := s.MatchingSubscribers(ctx, rules)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	previews := make([]domain.SubscriberPreview, len(matched))
	for i, sub := range matched {
		previews[i] = sub.Preview()
	}

	start := (page - 1) * limit
	if start > len(previews) {
		start = len(previews)
	}
	end := start + limit
	if end > len(previews) {
		end = len(previews)
	}

	sampleEnd := sampleSize
	if sampleEnd > len(previews) {
		sampleEnd = len(previews)
	}

	return &Preview{
		Total:       len(matched),
		Page:        page,
		Limit:       limit,
		Subscribers: previews[start:end],
		Sample:      previews[:sampleEnd],
	}, nil
}

// MatchingSubscribers fetches all opted-in subscribers and filters them in
// memory against the rule set.
func (s *Service) MatchingSubscribers(ctx context.Context, rules domain.SegmentRules) ([]domain.Subscriber, error) {
	all, err := s.subs.ListSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	now := s.nowFn()
	var matched []domain.Subscriber
	for _, sub := range all {
		if MatchesRules(sub, rules, now) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func validateInput(input CreateInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if input.Rules == nil {
		return fmt.Errorf("%w: rules are required", ErrValidation)
	}
	return ValidateRules(*input.Rules)
}

// ValidateRules rejects unsupported fields and operators at write time so
// stored rules never hit the evaluator's fail-closed path.
func ValidateRules(rules domain.SegmentRules) error {
	if rules.Match != domain.MatchAll && rules.Match != domain.MatchAny {
		return fmt.Errorf("%w: match must be ALL or ANY, got %q", ErrValidation, rules.Match)
	}
	for i, c := range rules.Conditions {
		if _, ok := fieldSpecs[c.Field]; !ok {
			return fmt.Errorf("%w: condition %d has unknown field %q", ErrValidation, i, c.Field)
		}
		if !knownOperator(c.Operator) {
			return fmt.Errorf("%w: condition %d has unknown operator %q", ErrValidation, i, c.Operator)
		}
		switch c.Operator {
		case domain.OpIn, domain.OpNotIn:
			if len(toList(c.Value)) == 0 {
				return fmt.Errorf("%w: condition %d operator %s requires a list value", ErrValidation, i, c.Operator)
			}
		case domain.OpGreaterThan, domain.OpLessThan:
			if _, ok := toNumber(c.Value); !ok {
				return fmt.Errorf("%w: condition %d operator %s requires a numeric value", ErrValidation, i, c.Operator)
			}
		}
	}
	return nil
}

func knownOperator(op domain.Operator) bool {
	for _, known := range domain.Operators() {
		if op == known {
			return true
		}
	}
	return false
}
