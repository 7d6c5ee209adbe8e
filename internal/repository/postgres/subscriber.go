package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hearthside/mailroom/internal/domain"
)

// SubscriberRepo implements segment.SubscriberRepository. This module only
// reads subscriber rows; the import/export pipeline owns writes.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber reader.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberColumns = `id, email, COALESCE(name,''), COALESCE(source,''), tags,
	subscribed_at, engagement_score, engagement_level, emails_received,
	last_emailed_at, last_opened_at, subscribed`

func (r *SubscriberRepo) ListSubscribed(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM subscribers WHERE subscribed = TRUE ORDER BY subscribed_at
	`, subscriberColumns))
	if err != nil {
		return nil, fmt.Errorf("list subscribed: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM subscribers WHERE id = $1
	`, subscriberColumns), id)

	s, err := scanSubscriber(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscriber %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByEmail returns the subscriber with the given address, or nil when the
// address is unknown. Used by the manual trigger path to default the
// recipient name.
func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM subscribers WHERE email = $1
	`, subscriberColumns), email)

	s, err := scanSubscriber(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (domain.Subscriber, error) {
	var s domain.Subscriber
	var level sql.NullString
	err := row.Scan(
		&s.ID, &s.Email, &s.Name, &s.Source, pq.Array(&s.Tags),
		&s.SubscribedAt, &s.EngagementScore, &level, &s.EmailsReceived,
		&s.LastEmailedAt, &s.LastOpenedAt, &s.Subscribed,
	)
	if err == sql.ErrNoRows {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("scan subscriber: %w", err)
	}
	s.EngagementLevel = domain.EngagementLevel(level.String)
	return s, nil
}
