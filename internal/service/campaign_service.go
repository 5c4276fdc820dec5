// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"log"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/events"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// CampaignService owns the campaign state machine:
//
//	pending -> running <-> paused -> {completed | cancelled | failed}
//
// running and paused are entered only by explicit calls; cancel is allowed
// from any non-terminal state; completed is reached by the dispatch workers
// once expansion is done and every message is terminal; failed is reserved
// for expansion-time fatal errors.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Accounts  repository.AccountRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Rotation  repository.CampaignAccountRepositoryInterface
	Messages  repository.MessageRepositoryInterface
	Expander  *Expander
	Health    *HealthEvaluator
	Events    events.StatusPublisher
}

type RotationSlotParams struct {
	AccountID  int `json:"account_id"`
	TemplateID int `json:"template_id"`
}

type CreateCampaignParams struct {
	Name                       string               `json:"name"`
	DelayMin                   int                  `json:"delay_min"`
	DelayMax                   int                  `json:"delay_max"`
	PauseAfterMessages         int                  `json:"pause_after_messages"`
	PauseDurationSeconds       int                  `json:"pause_duration_seconds"`
	AutoRemoveFailureThreshold int                  `json:"auto_remove_failure_threshold"`
	Slots                      []RotationSlotParams `json:"slots"`
}

// CreateCampaign validates the rotation and persists the campaign in
// pending. Enrollment uses the wide health gate: an unverified account is
// refused here even though it would not be removed mid-campaign.
func (s *CampaignService) CreateCampaign(ctx context.Context, p CreateCampaignParams) (*model.Campaign, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	if len(p.Slots) == 0 {
		return nil, fmt.Errorf("campaign needs at least one account/template slot")
	}

	for _, slot := range p.Slots {
		acct, err := s.Accounts.GetByID(slot.AccountID)
		if err != nil {
			return nil, err
		}
		snap := s.Health.Evaluate(ctx, acct)
		if !IsHealthy(snap) {
			return nil, fmt.Errorf("account %d cannot be enrolled: %s", slot.AccountID, UnhealthyReason(snap))
		}
		tpl, err := s.Templates.GetByID(slot.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, fmt.Errorf("template %d not found", slot.TemplateID)
		}
		if tpl.AccountID != slot.AccountID {
			return nil, fmt.Errorf("template %d does not belong to account %d", slot.TemplateID, slot.AccountID)
		}
	}

	c := &model.Campaign{
		Name:                       p.Name,
		Status:                     model.CampaignStatusPending,
		DelayMin:                   p.DelayMin,
		DelayMax:                   p.DelayMax,
		PauseAfterMessages:         p.PauseAfterMessages,
		PauseDurationSeconds:       p.PauseDurationSeconds,
		AutoRemoveFailureThreshold: p.AutoRemoveFailureThreshold,
	}
	if err := s.Campaigns.Create(c); err != nil {
		return nil, err
	}
	for _, slot := range p.Slots {
		ca := &model.CampaignAccount{CampaignID: c.ID, AccountID: slot.AccountID, TemplateID: slot.TemplateID}
		if err := s.Rotation.Create(ca); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Start moves the campaign to running and kicks off expansion on its own
// goroutine: the producer pauses inside the expander must never block the
// caller or job consumption.
func (s *CampaignService) Start(ctx context.Context, campaignID int, contactIDs []int) error {
	if err := s.transition(ctx, campaignID, model.CampaignStatusRunning, model.CampaignStatusPending); err != nil {
		return err
	}

	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}

	var contacts []model.Contact
	if len(contactIDs) > 0 {
		contacts, err = s.Contacts.ListByIDs(contactIDs)
	} else {
		contacts, err = s.Contacts.ListAll()
	}
	if err != nil {
		return err
	}

	rotation, err := s.buildRotation(campaignID)
	if err != nil {
		return err
	}
	if len(rotation) == 0 {
		// Expansion-time fatal error: nothing to rotate.
		s.forceStatus(ctx, campaignID, model.CampaignStatusFailed,
			model.CampaignStatusRunning, model.CampaignStatusPaused)
		return appErrors.NewNoTemplates(campaignID)
	}

	go s.expand(c, contacts, rotation)
	return nil
}

func (s *CampaignService) expand(c *model.Campaign, contacts []model.Contact, rotation []RotationSlot) {
	ctx := context.Background()
	produced, err := s.Expander.Expand(ctx, c, contacts, rotation)
	if err != nil {
		log.Printf("[CampaignService] campaign %d expansion failed after %d jobs: %v", c.ID, produced, err)
		s.forceStatus(ctx, c.ID, model.CampaignStatusFailed,
			model.CampaignStatusRunning, model.CampaignStatusPaused)
		return
	}

	if err := s.Campaigns.MarkExpansionDone(c.ID, produced); err != nil {
		log.Printf("[CampaignService] campaign %d: mark expansion done: %v", c.ID, err)
		return
	}
	log.Printf("[CampaignService] campaign %d expansion done, %d jobs queued", c.ID, produced)

	// An empty campaign has nothing left to wait for.
	if produced == 0 {
		s.forceStatus(ctx, c.ID, model.CampaignStatusCompleted,
			model.CampaignStatusRunning, model.CampaignStatusPaused)
	}
	s.publish(ctx, c.ID)
}

func (s *CampaignService) buildRotation(campaignID int) ([]RotationSlot, error) {
	slots, err := s.Rotation.ListActive(campaignID)
	if err != nil {
		return nil, err
	}
	rotation := []RotationSlot{}
	for _, slot := range slots {
		tpl, err := s.Templates.GetByID(slot.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			log.Printf("[CampaignService] campaign %d: rotation template %d missing, slot skipped", campaignID, slot.TemplateID)
			continue
		}
		rotation = append(rotation, RotationSlot{
			AccountID:    slot.AccountID,
			TemplateID:   tpl.ID,
			TemplateName: tpl.Name,
			Language:     tpl.Language,
		})
	}
	return rotation, nil
}

// Pause suspends dispatch for the campaign. Jobs already handed to a worker
// finish; everything else is pushed out until Resume.
func (s *CampaignService) Pause(ctx context.Context, campaignID int) error {
	return s.transition(ctx, campaignID, model.CampaignStatusPaused, model.CampaignStatusRunning)
}

func (s *CampaignService) Resume(ctx context.Context, campaignID int) error {
	return s.transition(ctx, campaignID, model.CampaignStatusRunning, model.CampaignStatusPaused)
}

// Cancel is allowed from any non-terminal state. Cooperative: in-flight
// sends are not interrupted, undispatched jobs are dropped by the workers.
func (s *CampaignService) Cancel(ctx context.Context, campaignID int) error {
	return s.transition(ctx, campaignID, model.CampaignStatusCancelled,
		model.CampaignStatusPending, model.CampaignStatusRunning, model.CampaignStatusPaused)
}

func (s *CampaignService) transition(ctx context.Context, campaignID int, to string, from ...string) error {
	applied, err := s.Campaigns.UpdateStatusIf(campaignID, to, from...)
	if err != nil {
		return err
	}
	if !applied {
		c, err := s.Campaigns.GetByID(campaignID)
		if err != nil {
			return err
		}
		return appErrors.NewInvalidTransition(campaignID, c.Status, to)
	}
	s.publish(ctx, campaignID)
	return nil
}

// forceStatus is transition without the invalid-transition error, for
// background paths where losing the race is fine.
func (s *CampaignService) forceStatus(ctx context.Context, campaignID int, to string, from ...string) {
	applied, err := s.Campaigns.UpdateStatusIf(campaignID, to, from...)
	if err != nil {
		log.Printf("[CampaignService] campaign %d -> %s: %v", campaignID, to, err)
		return
	}
	if applied {
		s.publish(ctx, campaignID)
	}
}

func (s *CampaignService) publish(ctx context.Context, campaignID int) {
	if s.Events == nil {
		return
	}
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return
	}
	s.Events.Publish(ctx, fmt.Sprintf("campaign:%d", campaignID), c)
}

// CampaignDetails is a campaign plus its per-status message rollup.
type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

func (s *CampaignService) GetCampaignDetails(campaignID int) (*CampaignDetails, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Campaigns.GetStats(campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// RenderPreview shows what one contact would receive from one template.
func (s *CampaignService) RenderPreview(templateID, contactID int) (string, error) {
	tpl, err := s.Templates.GetByID(templateID)
	if err != nil {
		return "", err
	}
	if tpl == nil {
		return "", fmt.Errorf("template not found")
	}
	contact, err := s.Contacts.GetByID(contactID)
	if err != nil {
		return "", err
	}
	if contact == nil {
		return "", fmt.Errorf("contact not found")
	}
	return RenderTemplate(tpl.Body, ContactVariables(contact)), nil
}

// SendAdHoc queues a single send outside any campaign. The message row has
// no campaign reference, so the worker skips the campaign gate and no
// counters are touched.
func (s *CampaignService) SendAdHoc(ctx context.Context, accountID, templateID, contactID int) (*model.Message, error) {
	acct, err := s.Accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.Templates.GetByID(templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %d not found", templateID)
	}
	if tpl.AccountID != acct.ID {
		return nil, fmt.Errorf("template %d does not belong to account %d", templateID, accountID)
	}
	contact, err := s.Contacts.GetByID(contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("contact %d not found", contactID)
	}

	msg := &model.Message{ContactID: contact.ID, AccountID: acct.ID, TemplateID: tpl.ID}
	if err := s.Messages.Create(msg); err != nil {
		return nil, err
	}

	job := model.CampaignJob{
		MessageID:    msg.ID,
		ContactID:    contact.ID,
		AccountID:    acct.ID,
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Language:     tpl.Language,
		Recipient:    contact.Phone,
		Variables:    ContactVariables(contact),
	}
	if err := s.Expander.Jobs.Enqueue(ctx, job, queue.EnqueueOptions{MaxAttempts: s.Expander.MaxAttempts}); err != nil {
		return nil, err
	}
	return msg, nil
}

// HandleStatusCallback folds provider delivery receipts into the message row
// and the campaign counters. The ratchet updates make replayed callbacks
// no-ops.
func (s *CampaignService) HandleStatusCallback(providerMessageID, status string) error {
	var (
		applied    bool
		campaignID int
		err        error
		counter    string
	)
	switch status {
	case model.MessageStatusDelivered:
		applied, campaignID, err = s.Messages.MarkDelivered(providerMessageID)
		counter = "delivered_count"
	case model.MessageStatusRead:
		applied, campaignID, err = s.Messages.MarkRead(providerMessageID)
		counter = "read_count"
	default:
		return fmt.Errorf("unsupported status callback %q", status)
	}
	if err != nil {
		return err
	}
	if applied && campaignID != 0 {
		if err := s.Campaigns.IncrementCounter(campaignID, counter, 1); err != nil {
			log.Printf("[CampaignService] increment %s for campaign %d: %v", counter, campaignID, err)
		}
	}
	return nil
}

// SweepCampaignAccounts consults the health gate for every account still in
// the campaign's rotation and removes the confirmed-bad ones. Called
// periodically and on failure spikes; the campaign keeps running throughout.
func (s *CampaignService) SweepCampaignAccounts(ctx context.Context, campaignID int) (int, error) {
	slots, err := s.Rotation.ListActive(campaignID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, slot := range slots {
		acct, err := s.Accounts.GetByID(slot.AccountID)
		if err != nil {
			log.Printf("[CampaignService] sweep campaign %d: account %d: %v", campaignID, slot.AccountID, err)
			continue
		}
		snap := s.Health.Evaluate(ctx, acct)
		if !ShouldRemoveFromCampaign(snap) {
			continue
		}
		reason := UnhealthyReason(snap)
		ok, err := s.Rotation.Deactivate(campaignID, slot.AccountID, reason)
		if err != nil {
			log.Printf("[CampaignService] sweep campaign %d: deactivate %d: %v", campaignID, slot.AccountID, err)
			continue
		}
		if ok {
			removed++
			log.Printf("[CampaignService] account %d removed from campaign %d: %s", slot.AccountID, campaignID, reason)
		}
	}
	return removed, nil
}

// SweepRunningCampaigns runs the health sweep across every running campaign.
func (s *CampaignService) SweepRunningCampaigns(ctx context.Context) {
	campaigns, _, err := s.Campaigns.ListCampaigns(0, 100, model.CampaignStatusRunning)
	if err != nil {
		log.Printf("[CampaignService] sweep: list running campaigns: %v", err)
		return
	}
	for _, c := range campaigns {
		if _, err := s.SweepCampaignAccounts(ctx, c.ID); err != nil {
			log.Printf("[CampaignService] sweep campaign %d: %v", c.ID, err)
		}
	}
}
