package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wablast-backend/internal/model"
)

func newHistoryRepo(t *testing.T) (*QueueHistoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &QueueHistoryRepository{DB: db}, mock
}

func TestHistoryUpsertKeyedByItemID(t *testing.T) {
	repo, mock := newHistoryRepo(t)

	h := &model.QueueHistory{
		ID:        "item-1",
		Queue:     "templates",
		Kind:      "create",
		AccountID: 1,
		Payload:   `{"name":"welcome"}`,
		Status:    model.QueueItemStatusProcessing,
		CreatedAt: time.Now(),
	}

	// Same row twice: the second write updates in place (ON CONFLICT).
	mock.ExpectExec("INSERT INTO queue_history").
		WithArgs(h.ID, h.Queue, h.Kind, h.AccountID, h.Payload, h.Status, "", h.CreatedAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO queue_history").
		WithArgs(h.ID, h.Queue, h.Kind, h.AccountID, h.Payload, "approved", "", h.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(h))

	now := time.Now()
	h.Status = "approved"
	h.ProcessedAt = &now
	require.NoError(t, repo.Upsert(h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryGetByIDMissingRow(t *testing.T) {
	repo, mock := newHistoryRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM queue_history").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	h, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestHistoryListFailedFiltersByQueue(t *testing.T) {
	repo, mock := newHistoryRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM queue_history").
		WithArgs("templates", model.QueueItemStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "queue", "kind", "account_id", "payload", "status", "last_error", "created_at", "processed_at",
		}).AddRow("item-1", "templates", "create", 1, "{}", model.QueueItemStatusFailed, "boom", time.Now(), nil))

	rows, err := repo.ListFailed("templates")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "item-1", rows[0].ID)
	assert.Equal(t, "boom", rows[0].LastError)
}
