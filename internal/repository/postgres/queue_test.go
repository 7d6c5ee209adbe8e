package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/queue"
)

func setupQueueRepoTest(t *testing.T) (*QueueRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueueRepo(db), mock
}

var repoNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func TestClaimWinsOnScheduledRow(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'processing'`).
		WithArgs("q1", repoNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "q1", repoNow)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLosesWhenRowAlreadyTaken(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	// Zero rows affected: another processor flipped the status first.
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'processing'`).
		WithArgs("q1", repoNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "q1", repoNow)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestInsertBatchRunsInOneTransaction(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	items := []domain.AutomationQueueItem{
		{ID: "q1", AutomationID: "a1", StepID: "s1", RecipientEmail: "a@example.com",
			Subject: "Hi", Status: domain.QueueScheduled, ScheduledFor: repoNow, MaxRetries: 3, CreatedAt: repoNow},
		{ID: "q2", AutomationID: "a1", StepID: "s2", RecipientEmail: "a@example.com",
			Subject: "Later", Status: domain.QueueScheduled, ScheduledFor: repoNow.Add(24 * time.Hour), MaxRetries: 3, CreatedAt: repoNow},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO automation_queue`)
	mock.ExpectExec(`INSERT INTO automation_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO automation_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchRollsBackOnError(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	items := []domain.AutomationQueueItem{
		{ID: "q1", RecipientEmail: "a@example.com", Status: domain.QueueScheduled, ScheduledFor: repoNow, CreatedAt: repoNow},
		{ID: "q2", RecipientEmail: "a@example.com", Status: domain.QueueScheduled, ScheduledFor: repoNow, CreatedAt: repoNow},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO automation_queue`)
	mock.ExpectExec(`INSERT INTO automation_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO automation_queue`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), items)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueItemsQuery(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	rows := sqlmock.NewRows([]string{
		"id", "automation_id", "automation_name", "step_id", "step_order",
		"recipient_email", "recipient_name", "subject", "body", "status",
		"scheduled_for", "sent_at", "error", "retry_count", "max_retries",
		"last_attempt_at", "created_at",
	}).AddRow("q1", "a1", "Welcome", "s1", 0, "a@example.com", "Ava", "Hi", "<p>hi</p>",
		"scheduled", repoNow.Add(-time.Minute), nil, "", 0, 3, nil, repoNow.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .* FROM automation_queue\s+WHERE status = 'scheduled' AND scheduled_for <= \$1`).
		WithArgs(repoNow, 100).
		WillReturnRows(rows)

	items, err := repo.DueItems(context.Background(), repoNow, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "q1", items[0].ID)
	assert.Equal(t, domain.QueueScheduled, items[0].Status)
	assert.Nil(t, items[0].SentAt)
}

func TestMarkSentRequiresProcessingRow(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sent'`).
		WithArgs("q1", repoNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), "q1", repoNow)
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestRescheduleUpdatesRetryState(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)
	next := repoNow.Add(15 * time.Minute)

	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'scheduled', scheduled_for = \$2`).
		WithArgs("q1", next, "boom", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "q1", next, "boom", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStaleCountsRows(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)
	cutoff := repoNow.Add(-5 * time.Minute)

	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'scheduled'\s+WHERE status = 'processing' AND last_attempt_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReleaseStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCancelScheduledByAutomation(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'cancelled'\s+WHERE automation_id = \$1 AND status = 'scheduled'`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.CancelScheduledByAutomation(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStatsAggregatesByStatus(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WithArgs(repoNow).
		WillReturnRows(sqlmock.NewRows([]string{"total", "scheduled", "due", "processing", "sent", "failed", "cancelled"}).
			AddRow(10, 4, 2, 1, 3, 1, 1))

	stats, err := repo.Stats(context.Background(), repoNow)
	require.NoError(t, err)
	assert.Equal(t, &domain.QueueStats{
		Total: 10, Scheduled: 4, Due: 2, Processing: 1, Sent: 3, Failed: 1, Cancelled: 1,
	}, stats)
}

func TestListFiltersByStatus(t *testing.T) {
	repo, mock := setupQueueRepoTest(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM automation_queue WHERE status = \$1`).
		WithArgs("failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{
		"id", "automation_id", "automation_name", "step_id", "step_order",
		"recipient_email", "recipient_name", "subject", "body", "status",
		"scheduled_for", "sent_at", "error", "retry_count", "max_retries",
		"last_attempt_at", "created_at",
	}).AddRow("q9", "a1", "Welcome", "s1", 0, "a@example.com", "", "Hi", "", "failed",
		repoNow, nil, "mailbox full", 3, 3, repoNow, repoNow)

	mock.ExpectQuery(`SELECT .* FROM automation_queue WHERE status = \$1\s+ORDER BY created_at DESC`).
		WithArgs("failed", 50, 0).
		WillReturnRows(rows)

	items, total, err := repo.List(context.Background(), queue.ListFilter{
		Status: domain.QueueFailed, Limit: 50, Offset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "mailbox full", items[0].Error)
}
