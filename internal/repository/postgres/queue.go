package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/queue"
)

// QueueRepo implements queue.Repository. Claim is a conditional UPDATE keyed
// on the current status, so two processors racing for the same item resolve
// to exactly one winner.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const queueColumns = `id, automation_id, automation_name, step_id, step_order,
	recipient_email, COALESCE(recipient_name,''), subject, body, status,
	scheduled_for, sent_at, COALESCE(error,''), retry_count, max_retries,
	last_attempt_at, created_at`

func (r *QueueRepo) InsertBatch(ctx context.Context, items []domain.AutomationQueueItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO automation_queue (
			id, automation_id, automation_name, step_id, step_order,
			recipient_email, recipient_name, subject, body, status,
			scheduled_for, retry_count, max_retries, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return fmt.Errorf("prepare enqueue: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		_, err := stmt.ExecContext(ctx,
			it.ID, it.AutomationID, it.AutomationName, it.StepID, it.StepOrder,
			it.RecipientEmail, it.RecipientName, it.Subject, it.Body, string(it.Status),
			it.ScheduledFor, it.RetryCount, it.MaxRetries, it.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert queue item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

func (r *QueueRepo) DueItems(ctx context.Context, now time.Time, limit int) ([]domain.AutomationQueueItem, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM automation_queue
		WHERE status = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
	`, queueColumns), now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due items: %w", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

func (r *QueueRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'processing', last_attempt_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("claim queue item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *QueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'sent', sent_at = $2, error = ''
		WHERE id = $1 AND status = 'processing'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", id, err)
	}
	return requireRow(res, queue.ErrNotFound)
}

func (r *QueueRepo) MarkFailed(ctx context.Context, id string, at time.Time, sendErr string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'failed', error = $3, last_attempt_at = $2
		WHERE id = $1 AND status = 'processing'
	`, id, at, sendErr)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return requireRow(res, queue.ErrNotFound)
}

func (r *QueueRepo) Reschedule(ctx context.Context, id string, nextAttempt time.Time, sendErr string, retryCount int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'scheduled', scheduled_for = $2, error = $3, retry_count = $4
		WHERE id = $1 AND status = 'processing'
	`, id, nextAttempt, sendErr, retryCount)
	if err != nil {
		return fmt.Errorf("reschedule %s: %w", id, err)
	}
	return requireRow(res, queue.ErrNotFound)
}

func (r *QueueRepo) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'scheduled'
		WHERE status = 'processing' AND last_attempt_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *QueueRepo) CancelScheduledByAutomation(ctx context.Context, automationID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_queue
		SET status = 'cancelled'
		WHERE automation_id = $1 AND status = 'scheduled'
	`, automationID)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled for automation %s: %w", automationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *QueueRepo) List(ctx context.Context, f queue.ListFilter) ([]domain.AutomationQueueItem, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = "WHERE status = $1"
		args = append(args, string(f.Status))
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM automation_queue %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue items: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	listQuery := fmt.Sprintf(`
		SELECT %s FROM automation_queue %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, queueColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items, err := collectQueueItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *QueueRepo) Stats(ctx context.Context, now time.Time) (*domain.QueueStats, error) {
	var s domain.QueueStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'scheduled'),
		       COUNT(*) FILTER (WHERE status = 'scheduled' AND scheduled_for <= $1),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM automation_queue
	`, now).Scan(&s.Total, &s.Scheduled, &s.Due, &s.Processing, &s.Sent, &s.Failed, &s.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &s, nil
}

func collectQueueItems(rows *sql.Rows) ([]domain.AutomationQueueItem, error) {
	var out []domain.AutomationQueueItem
	for rows.Next() {
		var it domain.AutomationQueueItem
		var status string
		err := rows.Scan(
			&it.ID, &it.AutomationID, &it.AutomationName, &it.StepID, &it.StepOrder,
			&it.RecipientEmail, &it.RecipientName, &it.Subject, &it.Body, &status,
			&it.ScheduledFor, &it.SentAt, &it.Error, &it.RetryCount, &it.MaxRetries,
			&it.LastAttemptAt, &it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.Status = domain.QueueStatus(status)
		out = append(out, it)
	}
	return out, rows.Err()
}
