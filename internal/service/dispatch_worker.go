// internal/service/dispatch_worker.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// DispatchWorker consumes campaign jobs and performs the send. Many worker
// processes run concurrently; nothing here assumes ordering across jobs.
// All finalizing writes are first-write-wins keyed by message id, so
// at-least-once delivery from the queue never double-counts.
type DispatchWorker struct {
	Accounts  repository.AccountRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Rotation  repository.CampaignAccountRepositoryInterface
	Messages  repository.MessageRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Gateway   gateway.Client
	Jobs      queue.JobQueue

	// MaxAttempts mirrors the enqueue-time attempt budget: transient
	// gateway errors are only finalized as failed once attempts run out.
	MaxAttempts int

	// PauseRecheck is how far out a job is pushed when its campaign is
	// paused.
	PauseRecheck time.Duration
}

// Process handles one job delivery. Returning an error hands the job back to
// the queue's retry policy; returning nil acks it.
func (w *DispatchWorker) Process(ctx context.Context, job model.CampaignJob, attempt int) error {
	msg, err := w.Messages.GetByID(job.MessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		log.Printf("[DispatchWorker] message %d no longer exists, dropping job", job.MessageID)
		return nil
	}
	if msg.Status != model.MessageStatusPending {
		// Redelivery of an already finalized message; the first write won.
		return nil
	}

	if job.CampaignID != 0 {
		proceed, err := w.campaignGate(ctx, &job)
		if err != nil || !proceed {
			return err
		}
	}

	acct, err := w.Accounts.GetByID(job.AccountID)
	if err != nil {
		var notFound *appErrors.ErrAccountNotFound
		if errors.As(err, &notFound) {
			// Configuration error: the account is gone. Fatal for this
			// job, never retried.
			w.finalizeFailed(job, err.Error())
			return nil
		}
		return err
	}

	res, err := w.Gateway.SendTemplateMessage(ctx, acct, job.Recipient, job.TemplateName, job.Language, job.Variables, job.MediaURL)
	if err != nil {
		w.noteAccountFailure(job)
		if gateway.IsRetryable(err) && attempt+1 < w.maxAttempts() {
			// Leave the message pending; the queue's backoff redelivers.
			return err
		}
		w.finalizeFailed(job, err.Error())
		return err
	}

	if job.CampaignID != 0 {
		if err := w.Rotation.ResetFailures(job.CampaignID, job.AccountID); err != nil {
			log.Printf("[DispatchWorker] reset failures for campaign %d account %d: %v", job.CampaignID, job.AccountID, err)
		}
	}

	applied, err := w.Messages.MarkSent(job.MessageID, res.MessageID)
	if err != nil {
		return err
	}
	if applied {
		w.incrementCounter(job.CampaignID, "sent_count")
	}
	w.maybeComplete(job.CampaignID)
	return nil
}

// campaignGate decides whether the job may proceed given its campaign's
// current state and rotation. A false return with nil error means the job
// was consumed here (dropped, re-scheduled, or finalized).
func (w *DispatchWorker) campaignGate(ctx context.Context, job *model.CampaignJob) (bool, error) {
	c, err := w.Campaigns.GetByID(job.CampaignID)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			log.Printf("[DispatchWorker] campaign %d no longer exists, dropping job for message %d", job.CampaignID, job.MessageID)
			return false, nil
		}
		return false, err
	}

	switch c.Status {
	case model.CampaignStatusCancelled, model.CampaignStatusCompleted, model.CampaignStatusFailed:
		// Cancellation lets in-flight sends finish but undispatched jobs
		// are dropped; their rows stay pending under a terminal campaign.
		return false, nil
	case model.CampaignStatusPaused:
		// Push the job out and ack this delivery so a long pause doesn't
		// burn the retry budget.
		recheck := w.PauseRecheck
		if recheck <= 0 {
			recheck = 30 * time.Second
		}
		requeued := *job
		requeued.NotBefore = time.Now().Add(recheck)
		if err := w.Jobs.Enqueue(ctx, requeued, queue.EnqueueOptions{MaxAttempts: w.maxAttempts()}); err != nil {
			return false, err
		}
		return false, nil
	}

	// Health-gate removals happen out-of-band; if this job's account was
	// rotated out since expansion, re-target it to a surviving slot.
	slots, err := w.Rotation.ListActive(job.CampaignID)
	if err != nil {
		return false, err
	}
	if len(slots) == 0 {
		w.finalizeFailed(*job, "no active accounts left in campaign rotation")
		return false, nil
	}
	for _, slot := range slots {
		if slot.AccountID == job.AccountID {
			return true, nil
		}
	}

	slot := slots[job.MessageID%len(slots)]
	tpl, err := w.Templates.GetByID(slot.TemplateID)
	if err != nil {
		return false, err
	}
	if tpl == nil {
		w.finalizeFailed(*job, fmt.Sprintf("rotation template %d not found", slot.TemplateID))
		return false, nil
	}

	log.Printf("[DispatchWorker] message %d re-targeted from account %d to %d", job.MessageID, job.AccountID, slot.AccountID)
	if err := w.Messages.UpdateAccount(job.MessageID, slot.AccountID, slot.TemplateID); err != nil {
		return false, err
	}
	job.AccountID = slot.AccountID
	job.TemplateID = slot.TemplateID
	job.TemplateName = tpl.Name
	job.Language = tpl.Language
	return true, nil
}

// noteAccountFailure bumps the rotation's consecutive-failure count and
// drops the account out of the rotation once it crosses the campaign's
// auto-remove threshold.
func (w *DispatchWorker) noteAccountFailure(job model.CampaignJob) {
	if job.CampaignID == 0 {
		return
	}
	failures, err := w.Rotation.IncrementFailures(job.CampaignID, job.AccountID)
	if err != nil {
		log.Printf("[DispatchWorker] count failure for campaign %d account %d: %v", job.CampaignID, job.AccountID, err)
		return
	}

	c, err := w.Campaigns.GetByID(job.CampaignID)
	if err != nil {
		return
	}
	threshold := c.AutoRemoveFailureThreshold
	if threshold > 0 && failures >= threshold {
		reason := fmt.Sprintf("%d consecutive send failures", failures)
		removed, err := w.Rotation.Deactivate(job.CampaignID, job.AccountID, reason)
		if err != nil {
			log.Printf("[DispatchWorker] deactivate account %d in campaign %d: %v", job.AccountID, job.CampaignID, err)
			return
		}
		if removed {
			log.Printf("[DispatchWorker] account %d removed from campaign %d rotation: %s", job.AccountID, job.CampaignID, reason)
		}
	}
}

func (w *DispatchWorker) finalizeFailed(job model.CampaignJob, lastError string) {
	applied, err := w.Messages.MarkFailed(job.MessageID, lastError)
	if err != nil {
		log.Printf("[DispatchWorker] finalize message %d as failed: %v", job.MessageID, err)
		return
	}
	if applied {
		w.incrementCounter(job.CampaignID, "failed_count")
	}
	w.maybeComplete(job.CampaignID)
}

// incrementCounter folds a message outcome into the campaign aggregates.
// Best-effort: a missed counter update is logged, not escalated.
func (w *DispatchWorker) incrementCounter(campaignID int, counter string) {
	if campaignID == 0 {
		return
	}
	if err := w.Campaigns.IncrementCounter(campaignID, counter, 1); err != nil {
		log.Printf("[DispatchWorker] increment %s for campaign %d: %v", counter, campaignID, err)
	}
}

// maybeComplete flips the campaign to completed once expansion has finished
// and no message is still pending. Status-guarded, so racing workers settle
// on exactly one transition.
func (w *DispatchWorker) maybeComplete(campaignID int) {
	if campaignID == 0 {
		return
	}
	c, err := w.Campaigns.GetByID(campaignID)
	if err != nil || c.Terminal() || !c.ExpansionDone {
		return
	}
	pending, err := w.Messages.CountPending(campaignID)
	if err != nil || pending > 0 {
		return
	}
	applied, err := w.Campaigns.UpdateStatusIf(campaignID, model.CampaignStatusCompleted,
		model.CampaignStatusRunning, model.CampaignStatusPaused)
	if err != nil {
		log.Printf("[DispatchWorker] complete campaign %d: %v", campaignID, err)
		return
	}
	if applied {
		log.Printf("[DispatchWorker] campaign %d completed", campaignID)
	}
}

func (w *DispatchWorker) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return 3
	}
	return w.MaxAttempts
}
