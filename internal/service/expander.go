// internal/service/expander.go
package service

import (
	"context"
	"log"
	"math/rand"
	"time"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// RotationSlot is one resolved entry of a campaign's sending rotation.
type RotationSlot struct {
	AccountID    int
	TemplateID   int
	TemplateName string
	Language     string
}

// Expander turns a campaign into individually delayed send jobs. Templates
// are assigned round-robin across the rotation so sends spread over the
// available accounts instead of exhausting one before the next. Each job's
// delay grows with its position, giving an approximately uniform send rate
// instead of a burst; on top of that the expander itself pauses after every
// PauseAfterMessages jobs, throttling production independently of
// consumption. Expansion must therefore run on its own goroutine.
type Expander struct {
	Messages    repository.MessageRepositoryInterface
	Jobs        queue.JobQueue
	MaxAttempts int

	// Progress, when set, receives monotonic (produced, total) updates.
	Progress func(produced, total int)

	// Overridable in tests.
	Sleep   func(ctx context.Context, d time.Duration) error
	RandInt func(n int) int
}

// Expand produces one job per contact and returns how many were enqueued.
// An empty rotation is a configuration error; a failure on one contact is
// logged and skipped.
func (e *Expander) Expand(ctx context.Context, campaign *model.Campaign, contacts []model.Contact, rotation []RotationSlot) (int, error) {
	if len(rotation) == 0 {
		return 0, appErrors.NewNoTemplates(campaign.ID)
	}

	sleep := e.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	produced := 0
	total := len(contacts)
	for i, contact := range contacts {
		select {
		case <-ctx.Done():
			return produced, ctx.Err()
		default:
		}

		slot := rotation[i%len(rotation)]
		delaySec := e.delayFor(i, campaign.DelayMin, campaign.DelayMax)

		msg := &model.Message{
			CampaignID:   campaign.ID,
			ContactID:    contact.ID,
			AccountID:    slot.AccountID,
			TemplateID:   slot.TemplateID,
			DelaySeconds: delaySec,
		}
		if err := e.Messages.Create(msg); err != nil {
			log.Printf("[Expander] campaign %d: message for contact %d not created: %v", campaign.ID, contact.ID, err)
			continue
		}

		job := model.CampaignJob{
			MessageID:    msg.ID,
			CampaignID:   campaign.ID,
			ContactID:    contact.ID,
			AccountID:    slot.AccountID,
			TemplateID:   slot.TemplateID,
			TemplateName: slot.TemplateName,
			Language:     slot.Language,
			Recipient:    contact.Phone,
			Variables:    ContactVariables(&contact),
			DelaySeconds: delaySec,
		}
		opts := queue.EnqueueOptions{
			Delay:       time.Duration(delaySec) * time.Second,
			MaxAttempts: e.MaxAttempts,
		}
		if err := e.Jobs.Enqueue(ctx, job, opts); err != nil {
			log.Printf("[Expander] campaign %d: enqueue for message %d failed: %v", campaign.ID, msg.ID, err)
			continue
		}
		produced++

		if e.Progress != nil {
			e.Progress(i+1, total)
		}

		// Mandatory producer pause. Only production blocks here; consumers
		// keep draining jobs already queued.
		if campaign.PauseAfterMessages > 0 && campaign.PauseDurationSeconds > 0 &&
			(i+1)%campaign.PauseAfterMessages == 0 && i+1 < total {
			if err := sleep(ctx, time.Duration(campaign.PauseDurationSeconds)*time.Second); err != nil {
				return produced, err
			}
		}
	}

	return produced, nil
}

// delayFor computes the send delay in seconds for the job at position i:
// a uniform draw from [min,max] scaled by the position. Non-positive pacing
// means immediate dispatch, not an error, so test campaigns stay usable.
func (e *Expander) delayFor(i, min, max int) int {
	if max <= 0 {
		return 0
	}
	if min < 0 {
		min = 0
	}
	if max < min {
		min, max = max, min
	}

	randInt := e.RandInt
	if randInt == nil {
		randInt = rand.Intn
	}
	perMessage := min
	if span := max - min; span > 0 {
		perMessage = min + randInt(span+1)
	}
	return perMessage * i
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
