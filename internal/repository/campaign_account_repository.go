package repository

import (
	"database/sql"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// CampaignAccountRepositoryInterface manages a campaign's sending rotation.
type CampaignAccountRepositoryInterface interface {
	Create(ca *model.CampaignAccount) error
	ListActive(campaignID int) ([]model.CampaignAccount, error)
	Deactivate(campaignID, accountID int, reason string) (bool, error)
	IncrementFailures(campaignID, accountID int) (int, error)
	ResetFailures(campaignID, accountID int) error
}

type CampaignAccountRepository struct {
	DB *sql.DB
}

func (r *CampaignAccountRepository) Create(ca *model.CampaignAccount) error {
	query := `
        INSERT INTO campaign_accounts (campaign_id, account_id, template_id, active, consecutive_failures)
        VALUES ($1, $2, $3, TRUE, 0)
        RETURNING id
    `
	err := r.DB.QueryRow(query, ca.CampaignID, ca.AccountID, ca.TemplateID).Scan(&ca.ID)
	if err != nil {
		return err
	}
	ca.Active = true
	return nil
}

// ListActive returns the rotation slots still in service, in insertion order.
// The expander and the worker's re-targeting both key off this order.
func (r *CampaignAccountRepository) ListActive(campaignID int) ([]model.CampaignAccount, error) {
	query := `
        SELECT id, campaign_id, account_id, template_id, active, consecutive_failures,
               removed_reason, removed_at
        FROM campaign_accounts
        WHERE campaign_id=$1 AND active=TRUE
        ORDER BY id
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []model.CampaignAccount{}
	for rows.Next() {
		var ca model.CampaignAccount
		if err := rows.Scan(&ca.ID, &ca.CampaignID, &ca.AccountID, &ca.TemplateID,
			&ca.Active, &ca.ConsecutiveFailures, &ca.RemovedReason, &ca.RemovedAt); err != nil {
			return nil, err
		}
		slots = append(slots, ca)
	}
	return slots, rows.Err()
}

// Deactivate removes an account from the rotation, recording why. Guarded on
// active so concurrent sweeps record the reason exactly once.
func (r *CampaignAccountRepository) Deactivate(campaignID, accountID int, reason string) (bool, error) {
	query := `
        UPDATE campaign_accounts
        SET active=FALSE, removed_reason=$1, removed_at=NOW()
        WHERE campaign_id=$2 AND account_id=$3 AND active=TRUE
    `
	res, err := r.DB.Exec(query, reason, campaignID, accountID)
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

func (r *CampaignAccountRepository) IncrementFailures(campaignID, accountID int) (int, error) {
	query := `
        UPDATE campaign_accounts
        SET consecutive_failures = consecutive_failures + 1
        WHERE campaign_id=$1 AND account_id=$2
        RETURNING consecutive_failures
    `
	var n int
	err := r.DB.QueryRow(query, campaignID, accountID).Scan(&n)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil // ad-hoc send, no rotation row
		}
		return 0, err
	}
	return n, nil
}

func (r *CampaignAccountRepository) ResetFailures(campaignID, accountID int) error {
	query := `UPDATE campaign_accounts SET consecutive_failures=0 WHERE campaign_id=$1 AND account_id=$2`
	_, err := r.DB.Exec(query, campaignID, accountID)
	return err
}

var _ CampaignAccountRepositoryInterface = (*CampaignAccountRepository)(nil)
