// internal/model/message.go
package model

import "time"

// Message statuses. A message is finalized on the first transition out of
// pending; later updates must be conditional so queue redeliveries are no-ops.
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Message is the persisted outcome row for one outbound send.
type Message struct {
	ID                int        `db:"id" json:"id"`
	CampaignID        int        `db:"campaign_id" json:"campaign_id,omitempty"` // 0 for ad-hoc sends
	ContactID         int        `db:"contact_id" json:"contact_id"`
	AccountID         int        `db:"account_id" json:"account_id"`
	TemplateID        int        `db:"template_id" json:"template_id"`
	Status            string     `db:"status" json:"status"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastError         string     `db:"last_error" json:"last_error,omitempty"`
	DelaySeconds      int        `db:"delay_seconds" json:"delay_seconds"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignJob is the queue payload for one send. It is built once at
// expansion time and immutable after enqueue: everything the worker needs to
// perform the send travels with the job, except the account credentials,
// which are resolved at dispatch time so token rotation takes effect.
type CampaignJob struct {
	MessageID    int               `json:"message_id"`
	CampaignID   int               `json:"campaign_id,omitempty"`
	ContactID    int               `json:"contact_id"`
	AccountID    int               `json:"account_id"`
	TemplateID   int               `json:"template_id"`
	TemplateName string            `json:"template_name"`
	Language     string            `json:"language"`
	Recipient    string            `json:"recipient"`
	Variables    map[string]string `json:"variables,omitempty"`
	MediaURL     string            `json:"media_url,omitempty"`
	DelaySeconds int               `json:"delay_seconds"`
	NotBefore    time.Time         `json:"not_before"`
}
