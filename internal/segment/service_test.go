package segment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/mailroom/internal/domain"
)

type memSegmentRepo struct {
	segments map[string]*domain.Segment
}

func newMemSegmentRepo() *memSegmentRepo {
	return &memSegmentRepo{segments: make(map[string]*domain.Segment)}
}

func (m *memSegmentRepo) List(_ context.Context) ([]domain.Segment, error) {
	out := make([]domain.Segment, 0, len(m.segments))
	for _, s := range m.segments {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memSegmentRepo) Get(_ context.Context, id string) (*domain.Segment, error) {
	s, ok := m.segments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSegmentRepo) Create(_ context.Context, s *domain.Segment) error {
	cp := *s
	m.segments[s.ID] = &cp
	return nil
}

func (m *memSegmentRepo) Update(_ context.Context, s *domain.Segment) error {
	if _, ok := m.segments[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.segments[s.ID] = &cp
	return nil
}

func (m *memSegmentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.segments[id]; !ok {
		return ErrNotFound
	}
	delete(m.segments, id)
	return nil
}

func (m *memSegmentRepo) UpdateCount(_ context.Context, id string, count int, at time.Time) error {
	s, ok := m.segments[id]
	if !ok {
		return ErrNotFound
	}
	s.CachedCount = count
	s.LastCalculatedAt = &at
	return nil
}

type memSubscriberRepo struct {
	subs []domain.Subscriber
}

func (m *memSubscriberRepo) ListSubscribed(_ context.Context) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for _, s := range m.subs {
		if s.Subscribed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubscriberRepo) GetByID(_ context.Context, id string) (*domain.Subscriber, error) {
	for _, s := range m.subs {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("subscriber %s not found", id)
}

func population(n int, tag string) []domain.Subscriber {
	subs := make([]domain.Subscriber, n)
	for i := range subs {
		subs[i] = domain.Subscriber{
			ID:           fmt.Sprintf("sub-%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			Name:         fmt.Sprintf("User %d", i),
			SubscribedAt: evalNow.Add(-24 * time.Hour),
			Subscribed:   true,
		}
		if i%2 == 0 {
			subs[i].Tags = []string{tag}
		}
	}
	return subs
}

func newTestService(subs []domain.Subscriber) (*Service, *memSegmentRepo) {
	repo := newMemSegmentRepo()
	svc := NewService(repo, &memSubscriberRepo{subs: subs}, nil)
	svc.nowFn = func() time.Time { return evalNow }
	return svc, repo
}

func vipRules() *domain.SegmentRules {
	return &domain.SegmentRules{
		Match: domain.MatchAll,
		Conditions: []domain.Condition{
			{Field: domain.FieldTags, Operator: domain.OpContains, Value: "vip"},
		},
	}
}

func TestCreateComputesCount(t *testing.T) {
	svc, repo := newTestService(population(10, "vip"))

	seg, err := svc.Create(context.Background(), CreateInput{
		Name:  "VIPs",
		Rules: vipRules(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, 5, seg.CachedCount)
	require.NotNil(t, seg.LastCalculatedAt)
	assert.Equal(t, evalNow, *seg.LastCalculatedAt)
	assert.Contains(t, repo.segments, seg.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Rules: vipRules()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "No rules"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Bad field", Rules: &domain.SegmentRules{
		Match:      domain.MatchAll,
		Conditions: []domain.Condition{{Field: "shoe_size", Operator: domain.OpEquals, Value: "9"}},
	}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Bad operator", Rules: &domain.SegmentRules{
		Match:      domain.MatchAll,
		Conditions: []domain.Condition{{Field: domain.FieldSource, Operator: "regex", Value: ".*"}},
	}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Bad match", Rules: &domain.SegmentRules{Match: "SOME"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetRecomputesAndPersistsCount(t *testing.T) {
	subs := population(10, "vip")
	svc, repo := newTestService(subs)

	seg, err := svc.Create(context.Background(), CreateInput{Name: "VIPs", Rules: vipRules()})
	require.NoError(t, err)
	assert.Equal(t, 5, seg.CachedCount)

	// The population shrinks underneath the stored segment.
	repo.segments[seg.ID].CachedCount = 999

	got, err := svc.Get(context.Background(), seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CachedCount)
	// Refresh was persisted, not just returned.
	assert.Equal(t, 5, repo.segments[seg.ID].CachedCount)
}

func TestListServesCachedCounts(t *testing.T) {
	svc, repo := newTestService(population(10, "vip"))

	seg, err := svc.Create(context.Background(), CreateInput{Name: "VIPs", Rules: vipRules()})
	require.NoError(t, err)

	// Stale on purpose: list must not recompute.
	repo.segments[seg.ID].CachedCount = 999

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 999, list[0].CachedCount)
}

func TestUpdateRecomputesCount(t *testing.T) {
	svc, _ := newTestService(population(10, "vip"))

	seg, err := svc.Create(context.Background(), CreateInput{Name: "VIPs", Rules: vipRules()})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), seg.ID, CreateInput{
		Name:  "Everyone",
		Rules: &domain.SegmentRules{Match: domain.MatchAll},
	})
	require.NoError(t, err)
	assert.Equal(t, "Everyone", updated.Name)
	assert.Equal(t, 10, updated.CachedCount)
}

func TestUpdateUnknownSegment(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.Update(context.Background(), "missing", CreateInput{Name: "X", Rules: vipRules()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService(population(4, "vip"))

	seg, err := svc.Create(context.Background(), CreateInput{Name: "VIPs", Rules: vipRules()})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), seg.ID))
	assert.NotContains(t, repo.segments, seg.ID)
	assert.ErrorIs(t, svc.Delete(context.Background(), seg.ID), ErrNotFound)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	svc, repo := newTestService(population(10, "vip"))

	seg, err := svc.Create(context.Background(), CreateInput{Name: "VIPs", Rules: vipRules()})
	require.NoError(t, err)
	repo.segments[seg.ID].CachedCount = 999

	preview, err := svc.Preview(context.Background(), seg.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, preview.Total)
	assert.Len(t, preview.Subscribers, 3)
	// Cached count untouched by preview.
	assert.Equal(t, 999, repo.segments[seg.ID].CachedCount)
}

func TestEvaluateRulesPagination(t *testing.T) {
	svc, _ := newTestService(population(50, "vip")) // 25 match

	preview, err := svc.EvaluateRules(context.Background(), *vipRules(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, preview.Total)
	assert.Equal(t, 2, preview.Page)
	assert.Equal(t, 10, preview.Limit)
	assert.Len(t, preview.Subscribers, 10)
	assert.Len(t, preview.Sample, 10) // first ten matches, page-independent

	// Page past the end.
	preview, err = svc.EvaluateRules(context.Background(), *vipRules(), 9, 10)
	require.NoError(t, err)
	assert.Empty(t, preview.Subscribers)
	assert.Equal(t, 25, preview.Total)

	// Defaults: page<1 becomes 1, limit<=0 becomes the default page size.
	preview, err = svc.EvaluateRules(context.Background(), *vipRules(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.Page)
	assert.Equal(t, defaultPerPage, preview.Limit)
}

func TestEvaluateRulesRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.EvaluateRules(context.Background(), domain.SegmentRules{
		Match:      domain.MatchAll,
		Conditions: []domain.Condition{{Field: domain.FieldTags, Operator: domain.OpIn, Value: nil}},
	}, 1, 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.EvaluateRules(context.Background(), domain.SegmentRules{
		Match:      domain.MatchAll,
		Conditions: []domain.Condition{{Field: domain.FieldEngagementScore, Operator: domain.OpGreaterThan, Value: "high"}},
	}, 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMatchingSubscribersSkipsUnsubscribed(t *testing.T) {
	subs := population(4, "vip")
	subs[0].Subscribed = false // was a vip
	svc, _ := newTestService(subs)

	matched, err := svc.MatchingSubscribers(context.Background(), *vipRules())
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}
