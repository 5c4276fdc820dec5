// internal/model/template.go
package model

import "time"

// Template is a provider-registered message template tied to one account.
// Body keeps a local copy for preview rendering; the provider owns the
// canonical version and its review status.
type Template struct {
	ID             int       `db:"id" json:"id"`
	AccountID      int       `db:"account_id" json:"account_id"`
	Name           string    `db:"name" json:"name"`
	Language       string    `db:"language" json:"language"`
	Body           string    `db:"body" json:"body"`
	ProviderID     string    `db:"provider_id" json:"provider_id"`
	ProviderStatus string    `db:"provider_status" json:"provider_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
