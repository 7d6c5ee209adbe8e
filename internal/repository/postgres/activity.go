package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/mailroom/internal/activity"
	"github.com/hearthside/mailroom/internal/pkg/logger"
)

// ActivityLog implements activity.Recorder against the activity_log table.
// Recording is best-effort: a failed insert is logged, never surfaced, so
// audit problems cannot fail the operation being audited.
type ActivityLog struct{ db *sql.DB }

// NewActivityLog creates a Postgres-backed activity recorder.
func NewActivityLog(db *sql.DB) *ActivityLog { return &ActivityLog{db: db} }

func (l *ActivityLog) Record(ctx context.Context, action, entityType, entityID, detail string) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), action, entityType, entityID, detail, time.Now().UTC())
	if err != nil {
		logger.Error("activity log insert failed",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// Recent returns the newest entries, most recent first.
func (l *ActivityLog) Recent(ctx context.Context, limit int) ([]activity.Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, COALESCE(detail,''), created_at
		FROM activity_log ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var e activity.Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
