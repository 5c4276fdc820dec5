// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrAccountNotFound means a job or queue item references an account that no
// longer exists. This is a configuration error, never retried.
type ErrAccountNotFound struct {
	AccountID int
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account with ID %d not found", e.AccountID)
}

func NewAccountNotFound(id int) error {
	return &ErrAccountNotFound{AccountID: id}
}

// ErrNoTemplates means a campaign has nothing in its sending rotation.
type ErrNoTemplates struct {
	CampaignID int
}

func (e *ErrNoTemplates) Error() string {
	return fmt.Sprintf("campaign %d has no templates to rotate", e.CampaignID)
}

func NewNoTemplates(campaignID int) error {
	return &ErrNoTemplates{CampaignID: campaignID}
}

// ErrInvalidTransition is returned when a campaign state change is not
// allowed from the campaign's current status.
type ErrInvalidTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot go from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(campaignID int, from, to string) error {
	return &ErrInvalidTransition{CampaignID: campaignID, From: from, To: to}
}
