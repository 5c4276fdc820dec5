package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)

	// UpdateStatusIf applies the transition only when the campaign is still
	// in one of the expected statuses, and reports whether it applied.
	// Concurrent workers race on the terminal transition; the guard makes
	// the race harmless.
	UpdateStatusIf(campaignID int, status string, from ...string) (bool, error)
	MarkExpansionDone(campaignID, totalContacts int) error

	// IncrementCounter adds delta to one of the campaign's aggregate
	// counters. Callers must only invoke it when the corresponding message
	// transition actually applied, which is what keeps counters idempotent
	// under at-least-once delivery.
	IncrementCounter(campaignID int, counter string, delta int) error
	GetStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

var campaignCounters = map[string]bool{
	"sent_count":      true,
	"delivered_count": true,
	"read_count":      true,
	"failed_count":    true,
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	query := `
        INSERT INTO campaigns
        (name, status, delay_min, delay_max, pause_after_messages, pause_duration_seconds,
         auto_remove_failure_threshold, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Name, c.Status, c.DelayMin, c.DelayMax,
		c.PauseAfterMessages, c.PauseDurationSeconds,
		c.AutoRemoveFailureThreshold, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, status, delay_min, delay_max, pause_after_messages,
               pause_duration_seconds, auto_remove_failure_threshold,
               total_contacts, sent_count, delivered_count, read_count, failed_count,
               expansion_done, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Status, &c.DelayMin, &c.DelayMax, &c.PauseAfterMessages,
		&c.PauseDurationSeconds, &c.AutoRemoveFailureThreshold,
		&c.TotalContacts, &c.SentCount, &c.DeliveredCount, &c.ReadCount, &c.FailedCount,
		&c.ExpansionDone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, name, status, delay_min, delay_max, pause_after_messages,
               pause_duration_seconds, auto_remove_failure_threshold,
               total_contacts, sent_count, delivered_count, read_count, failed_count,
               expansion_done, created_at, updated_at
        FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.DelayMin, &c.DelayMax,
			&c.PauseAfterMessages, &c.PauseDurationSeconds, &c.AutoRemoveFailureThreshold,
			&c.TotalContacts, &c.SentCount, &c.DeliveredCount, &c.ReadCount, &c.FailedCount,
			&c.ExpansionDone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatusIf(campaignID int, status string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("UpdateStatusIf requires at least one expected status")
	}

	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status IN (`
	args := []interface{}{status, campaignID}
	for i, s := range from {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", i+3)
		args = append(args, s)
	}
	query += ")"

	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepository) MarkExpansionDone(campaignID, totalContacts int) error {
	query := `UPDATE campaigns SET expansion_done=TRUE, total_contacts=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, totalContacts, campaignID)
	return err
}

func (r *CampaignRepository) IncrementCounter(campaignID int, counter string, delta int) error {
	if !campaignCounters[counter] {
		return fmt.Errorf("unknown campaign counter: %s", counter)
	}
	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + $1, updated_at=NOW() WHERE id=$2`, counter, counter)
	_, err := r.DB.Exec(query, delta, campaignID)
	return err
}

func (r *CampaignRepository) GetStats(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":     0,
		"pending":   0,
		"sent":      0,
		"delivered": 0,
		"read":      0,
		"failed":    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
