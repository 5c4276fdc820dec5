package repository

import (
	"database/sql"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// QueueHistoryRepositoryInterface persists sequential-queue item history.
type QueueHistoryRepositoryInterface interface {
	// Upsert is keyed by the item id: replaying the same item after a crash
	// updates the existing row instead of duplicating it.
	Upsert(h *model.QueueHistory) error
	GetByID(id string) (*model.QueueHistory, error)
	ListFailed(queue string) ([]model.QueueHistory, error)
}

type QueueHistoryRepository struct {
	DB *sql.DB
}

func (r *QueueHistoryRepository) Upsert(h *model.QueueHistory) error {
	query := `
        INSERT INTO queue_history (id, queue, kind, account_id, payload, status, last_error, created_at, processed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE
        SET status=EXCLUDED.status,
            last_error=EXCLUDED.last_error,
            processed_at=EXCLUDED.processed_at
    `
	_, err := r.DB.Exec(query, h.ID, h.Queue, h.Kind, h.AccountID, h.Payload,
		h.Status, h.LastError, h.CreatedAt, h.ProcessedAt)
	return err
}

func (r *QueueHistoryRepository) GetByID(id string) (*model.QueueHistory, error) {
	query := `
        SELECT id, queue, kind, account_id, payload, status, last_error, created_at, processed_at
        FROM queue_history
        WHERE id=$1
    `
	var h model.QueueHistory
	err := r.DB.QueryRow(query, id).Scan(&h.ID, &h.Queue, &h.Kind, &h.AccountID,
		&h.Payload, &h.Status, &h.LastError, &h.CreatedAt, &h.ProcessedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

func (r *QueueHistoryRepository) ListFailed(queue string) ([]model.QueueHistory, error) {
	query := `
        SELECT id, queue, kind, account_id, payload, status, last_error, created_at, processed_at
        FROM queue_history
        WHERE queue=$1 AND status=$2
        ORDER BY created_at
    `
	rows, err := r.DB.Query(query, queue, model.QueueItemStatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.QueueHistory{}
	for rows.Next() {
		var h model.QueueHistory
		if err := rows.Scan(&h.ID, &h.Queue, &h.Kind, &h.AccountID, &h.Payload,
			&h.Status, &h.LastError, &h.CreatedAt, &h.ProcessedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

var _ QueueHistoryRepositoryInterface = (*QueueHistoryRepository)(nil)
