package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/segment"
)

// SegmentRepo implements segment.Repository. Rules are stored as a single
// JSONB column so new fields and operators never need a migration.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func (r *SegmentRepo) List(ctx context.Context) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description,''), rules, cached_count,
		       last_calculated_at, created_at, updated_at
		FROM segments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) Get(ctx context.Context, id string) (*domain.Segment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description,''), rules, cached_count,
		       last_calculated_at, created_at, updated_at
		FROM segments WHERE id = $1
	`, id)

	s, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, segment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SegmentRepo) Create(ctx context.Context, s *domain.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO segments (id, name, description, rules, cached_count,
		                      last_calculated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.Description, rules, s.CachedCount,
		s.LastCalculatedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Update(ctx context.Context, s *domain.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE segments
		SET name = $2, description = $3, rules = $4, cached_count = $5,
		    last_calculated_at = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.Name, s.Description, rules, s.CachedCount,
		s.LastCalculatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return requireRow(res, segment.ErrNotFound)
}

func (r *SegmentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	return requireRow(res, segment.ErrNotFound)
}

func (r *SegmentRepo) UpdateCount(ctx context.Context, id string, count int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE segments SET cached_count = $2, last_calculated_at = $3 WHERE id = $1
	`, id, count, at)
	if err != nil {
		return fmt.Errorf("update segment count: %w", err)
	}
	return requireRow(res, segment.ErrNotFound)
}

func scanSegment(row rowScanner) (domain.Segment, error) {
	var s domain.Segment
	var rules []byte
	err := row.Scan(&s.ID, &s.Name, &s.Description, &rules, &s.CachedCount,
		&s.LastCalculatedAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("scan segment: %w", err)
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &s.Rules); err != nil {
			return s, fmt.Errorf("unmarshal rules for segment %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// requireRow maps a zero-row UPDATE/DELETE to the caller's not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
