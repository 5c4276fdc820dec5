// internal/model/queue_item.go
package model

import "time"

// Queue item lifecycle statuses. Terminal statuses are operation-specific
// (a create finishes with the provider's review status, a delete with
// "deleted", and so on); only pending, processing and failed are shared.
const (
	QueueItemStatusPending    = "pending"
	QueueItemStatusProcessing = "processing"
	QueueItemStatusFailed     = "failed"
	QueueItemStatusDeleted    = "deleted"
	QueueItemStatusCloned     = "cloned"
	QueueItemStatusUpdated    = "updated"
)

// QueueHistory is the persisted audit row for a sequential-queue item.
// Upserts are keyed by the item id, so crash-replays of the same item update
// the row in place instead of duplicating it. A retry is always a brand-new
// item (new id, new row); the failed row stays behind as the audit trail.
type QueueHistory struct {
	ID          string     `db:"id" json:"id"`
	Queue       string     `db:"queue" json:"queue"`
	Kind        string     `db:"kind" json:"kind"`
	AccountID   int        `db:"account_id" json:"account_id"`
	Payload     string     `db:"payload" json:"payload"`
	Status      string     `db:"status" json:"status"`
	LastError   string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
