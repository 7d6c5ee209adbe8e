package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hearthside/mailroom/internal/automation"
	"github.com/hearthside/mailroom/internal/domain"
)

// AutomationRepo implements automation.Repository. Steps are stored as a
// JSONB array in step order; callers renumber before persisting.
type AutomationRepo struct{ db *sql.DB }

// NewAutomationRepo creates a Postgres-backed automation repository.
func NewAutomationRepo(db *sql.DB) *AutomationRepo { return &AutomationRepo{db: db} }

const automationColumns = `id, name, COALESCE(description,''), trigger_type, status, steps, created_at, updated_at`

func (r *AutomationRepo) List(ctx context.Context) ([]domain.EmailAutomation, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM automations ORDER BY created_at DESC
	`, automationColumns))
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()
	return collectAutomations(rows)
}

func (r *AutomationRepo) Get(ctx context.Context, id string) (*domain.EmailAutomation, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM automations WHERE id = $1
	`, automationColumns), id)

	a, err := scanAutomation(row)
	if err == sql.ErrNoRows {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AutomationRepo) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.EmailAutomation, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM automations
		WHERE trigger_type = $1 AND status = $2
		ORDER BY created_at
	`, automationColumns), string(trigger), string(domain.AutomationActive))
	if err != nil {
		return nil, fmt.Errorf("list automations by trigger: %w", err)
	}
	defer rows.Close()
	return collectAutomations(rows)
}

func (r *AutomationRepo) Create(ctx context.Context, a *domain.EmailAutomation) error {
	steps, err := json.Marshal(a.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automations (id, name, description, trigger_type, status, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Name, a.Description, string(a.Trigger), string(a.Status),
		steps, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

func (r *AutomationRepo) Update(ctx context.Context, a *domain.EmailAutomation) error {
	steps, err := json.Marshal(a.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE automations
		SET name = $2, description = $3, trigger_type = $4, steps = $5, updated_at = $6
		WHERE id = $1
	`, a.ID, a.Name, a.Description, string(a.Trigger), steps, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update automation: %w", err)
	}
	return requireRow(res, automation.ErrNotFound)
}

func (r *AutomationRepo) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automations SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update automation status: %w", err)
	}
	return requireRow(res, automation.ErrNotFound)
}

func (r *AutomationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	return requireRow(res, automation.ErrNotFound)
}

func collectAutomations(rows *sql.Rows) ([]domain.EmailAutomation, error) {
	var out []domain.EmailAutomation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAutomation(row rowScanner) (domain.EmailAutomation, error) {
	var a domain.EmailAutomation
	var trigger, status string
	var steps []byte
	err := row.Scan(&a.ID, &a.Name, &a.Description, &trigger, &status,
		&steps, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("scan automation: %w", err)
	}
	a.Trigger = domain.TriggerType(trigger)
	a.Status = domain.AutomationStatus(status)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &a.Steps); err != nil {
			return a, fmt.Errorf("unmarshal steps for automation %s: %w", a.ID, err)
		}
	}
	return a, nil
}
