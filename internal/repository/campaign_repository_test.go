package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/model"
)

func newCampaignRepo(t *testing.T) (*CampaignRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &CampaignRepository{DB: db}, mock
}

func TestCampaignGetByIDNotFound(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(404)
	var notFound *appErrors.ErrCampaignNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 404, notFound.CampaignID)
}

func TestUpdateStatusIfGuardsOnCurrentStatus(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(model.CampaignStatusPaused, 7, model.CampaignStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(model.CampaignStatusPaused, 7, model.CampaignStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdateStatusIf(7, model.CampaignStatusPaused, model.CampaignStatusRunning)
	require.NoError(t, err)
	assert.True(t, applied)

	// Second caller loses the race; the guard reports it.
	applied, err = repo.UpdateStatusIf(7, model.CampaignStatusPaused, model.CampaignStatusRunning)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIfAcceptsMultipleFromStates(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(model.CampaignStatusCompleted, 7, model.CampaignStatusRunning, model.CampaignStatusPaused).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdateStatusIf(7, model.CampaignStatusCompleted,
		model.CampaignStatusRunning, model.CampaignStatusPaused)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIfRequiresExpectedStatuses(t *testing.T) {
	repo, _ := newCampaignRepo(t)

	_, err := repo.UpdateStatusIf(7, model.CampaignStatusPaused)
	assert.Error(t, err)
}

func TestIncrementCounterRejectsUnknownColumn(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	err := repo.IncrementCounter(7, "sent_count; DROP TABLE campaigns", 1)
	assert.ErrorContains(t, err, "unknown campaign counter")

	mock.ExpectExec("UPDATE campaigns SET sent_count = sent_count").
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementCounter(7, "sent_count", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatsFoldsUnknownStatusesIntoTotal(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("sent", 5).
			AddRow("failed", 2))

	stats, err := repo.GetStats(7)
	require.NoError(t, err)
	assert.Equal(t, 5, stats["sent"])
	assert.Equal(t, 2, stats["failed"])
	assert.Equal(t, 0, stats["pending"])
	assert.Equal(t, 7, stats["total"])
}

func TestMarkExpansionDone(t *testing.T) {
	repo, mock := newCampaignRepo(t)

	mock.ExpectExec("UPDATE campaigns SET expansion_done").
		WithArgs(120, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkExpansionDone(7, 120))
	assert.NoError(t, mock.ExpectationsWereMet())
}
