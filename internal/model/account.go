// internal/model/account.go
package model

import "time"

// Account statuses as reported by the provider.
const (
	AccountStatusConnected    = "connected"
	AccountStatusBanned       = "banned"
	AccountStatusFlagged      = "flagged"
	AccountStatusRestricted   = "restricted"
	AccountStatusDisconnected = "disconnected"
	AccountStatusUnknown      = "unknown"
)

// Account is a provider sending account (one phone number registration).
// Credentials are managed by account-management code; this core only reads them.
type Account struct {
	ID            int        `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	PhoneNumberID string     `db:"phone_number_id" json:"phone_number_id"`
	BusinessID    string     `db:"business_id" json:"business_id"`
	AccessToken   string     `db:"access_token" json:"-"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
