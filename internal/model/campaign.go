// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses. Paused is a sub-state of a running campaign;
// completed, cancelled and failed are terminal.
const (
	CampaignStatusPending   = "pending"
	CampaignStatusRunning   = "running"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
	CampaignStatusFailed    = "failed"
)

type Campaign struct {
	ID     int    `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Status string `db:"status" json:"status"`

	// Pacing config. Delays are seconds; non-positive values mean
	// immediate dispatch.
	DelayMin             int `db:"delay_min" json:"delay_min"`
	DelayMax             int `db:"delay_max" json:"delay_max"`
	PauseAfterMessages   int `db:"pause_after_messages" json:"pause_after_messages"`
	PauseDurationSeconds int `db:"pause_duration_seconds" json:"pause_duration_seconds"`

	// Rotation config: an account is dropped from the rotation after this
	// many consecutive send failures (0 disables the auto-remove).
	AutoRemoveFailureThreshold int `db:"auto_remove_failure_threshold" json:"auto_remove_failure_threshold"`

	// Aggregate counters, folded in by the dispatch worker.
	TotalContacts  int `db:"total_contacts" json:"total_contacts"`
	SentCount      int `db:"sent_count" json:"sent_count"`
	DeliveredCount int `db:"delivered_count" json:"delivered_count"`
	ReadCount      int `db:"read_count" json:"read_count"`
	FailedCount    int `db:"failed_count" json:"failed_count"`

	ExpansionDone bool       `db:"expansion_done" json:"expansion_done"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Terminal reports whether the campaign can no longer change state.
func (c *Campaign) Terminal() bool {
	switch c.Status {
	case CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusFailed:
		return true
	}
	return false
}

// CampaignAccount is one slot in a campaign's sending rotation: an account
// plus the template it sends. Deactivated slots stay on the row for audit.
type CampaignAccount struct {
	ID                  int        `db:"id" json:"id"`
	CampaignID          int        `db:"campaign_id" json:"campaign_id"`
	AccountID           int        `db:"account_id" json:"account_id"`
	TemplateID          int        `db:"template_id" json:"template_id"`
	Active              bool       `db:"active" json:"active"`
	ConsecutiveFailures int        `db:"consecutive_failures" json:"consecutive_failures"`
	RemovedReason       string     `db:"removed_reason" json:"removed_reason,omitempty"`
	RemovedAt           *time.Time `db:"removed_at" json:"removed_at,omitempty"`
}
