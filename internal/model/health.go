// internal/model/health.go
package model

import "time"

// Quality ratings, best to worst. Unknown sorts below red on purpose: it is
// indistinguishable from a transient provider error and must never be read
// as confirmed-bad.
const (
	QualityGreen   = "green"
	QualityYellow  = "yellow"
	QualityRed     = "red"
	QualityUnknown = "unknown"
)

const (
	VerificationVerified   = "verified"
	VerificationUnverified = "unverified"
	VerificationUnknown    = "unknown"
)

// AccountHealthSnapshot is the provider-reported standing of an account at a
// point in time. Not persisted long-term; recomputed on demand.
type AccountHealthSnapshot struct {
	AccountID    int       `json:"account_id"`
	Status       string    `json:"status"`
	Quality      string    `json:"quality"`
	Verification string    `json:"verification"`
	DisplayName  string    `json:"display_name,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}
