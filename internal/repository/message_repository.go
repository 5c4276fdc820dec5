package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// MessageRepositoryInterface defines the persistence contract for outbound
// message rows. All finalizing updates are conditional on the current status
// so that queue redeliveries and crash-replays are first-write-wins no-ops.
type MessageRepositoryInterface interface {
	Create(m *model.Message) error
	GetByID(id int) (*model.Message, error)

	// MarkSent / MarkFailed finalize a pending message and report whether
	// the transition applied. A false return with nil error means the row
	// was already finalized by an earlier delivery.
	MarkSent(id int, providerMessageID string) (bool, error)
	MarkFailed(id int, lastError string) (bool, error)

	// Delivery receipts ratchet forward only: sent -> delivered -> read.
	MarkDelivered(providerMessageID string) (bool, int, error)
	MarkRead(providerMessageID string) (bool, int, error)

	UpdateAccount(id, accountID, templateID int) error
	CountPending(campaignID int) (int, error)
}

type MessageRepository struct {
	DB *sql.DB
}

func (r *MessageRepository) Create(m *model.Message) error {
	m.CreatedAt = time.Now()
	if m.Status == "" {
		m.Status = model.MessageStatusPending
	}
	query := `
        INSERT INTO messages
        (campaign_id, contact_id, account_id, template_id, status, delay_seconds, created_at)
        VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, m.CampaignID, m.ContactID, m.AccountID,
		m.TemplateID, m.Status, m.DelaySeconds, m.CreatedAt).Scan(&m.ID)
}

func (r *MessageRepository) GetByID(id int) (*model.Message, error) {
	query := `
        SELECT id, COALESCE(campaign_id, 0), contact_id, account_id, template_id,
               status, provider_message_id, last_error, delay_seconds, created_at, updated_at
        FROM messages
        WHERE id=$1
    `
	var m model.Message
	err := r.DB.QueryRow(query, id).Scan(
		&m.ID, &m.CampaignID, &m.ContactID, &m.AccountID, &m.TemplateID,
		&m.Status, &m.ProviderMessageID, &m.LastError, &m.DelaySeconds,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) MarkSent(id int, providerMessageID string) (bool, error) {
	query := `
        UPDATE messages
        SET status=$1, provider_message_id=$2, last_error='', updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.MessageStatusSent, providerMessageID, id, model.MessageStatusPending)
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

func (r *MessageRepository) MarkFailed(id int, lastError string) (bool, error) {
	query := `
        UPDATE messages
        SET status=$1, last_error=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.MessageStatusFailed, lastError, id, model.MessageStatusPending)
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

// MarkDelivered flips a sent message to delivered, keyed by the provider's
// message id from the status callback. Returns the campaign id so the caller
// can fold the counter in.
func (r *MessageRepository) MarkDelivered(providerMessageID string) (bool, int, error) {
	return r.ratchet(providerMessageID, model.MessageStatusDelivered, model.MessageStatusSent)
}

func (r *MessageRepository) MarkRead(providerMessageID string) (bool, int, error) {
	return r.ratchet(providerMessageID, model.MessageStatusRead,
		model.MessageStatusSent, model.MessageStatusDelivered)
}

func (r *MessageRepository) ratchet(providerMessageID, status string, from ...string) (bool, int, error) {
	query := `
        UPDATE messages
        SET status=$1, updated_at=NOW()
        WHERE provider_message_id=$2 AND status = ANY($3)
        RETURNING COALESCE(campaign_id, 0)
    `
	var campaignID int
	err := r.DB.QueryRow(query, status, providerMessageID, pq.Array(from)).Scan(&campaignID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, 0, nil // already past this state, or unknown id
		}
		return false, 0, err
	}
	return true, campaignID, nil
}

// UpdateAccount re-targets a pending message after its original account was
// removed from the rotation.
func (r *MessageRepository) UpdateAccount(id, accountID, templateID int) error {
	query := `UPDATE messages SET account_id=$1, template_id=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	_, err := r.DB.Exec(query, accountID, templateID, id, model.MessageStatusPending)
	return err
}

func (r *MessageRepository) CountPending(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM messages WHERE campaign_id=$1 AND status=$2`,
		campaignID, model.MessageStatusPending).Scan(&count)
	return count, err
}

func oneRowAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
