// Package taskqueue is a single-consumer, FIFO, one-at-a-time processor for
// account-scoped mutations the provider does not allow to run concurrently.
// It is instantiated twice, over the template vocabulary and the profile
// vocabulary; the control logic is identical.
//
// Items live in memory; the audit trail lives in queue_history rows. These
// operations are human-triggered and low-volume, so losing the in-memory
// tail on restart is acceptable — the history rows keep the record.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/wablast-backend/internal/events"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// Operation is one queued mutation. Concrete types form a tagged union per
// vocabulary; the executor matches exhaustively on them.
type Operation interface {
	Kind() string
	Account() int
}

// Executor performs operations against the provider and decodes persisted
// payloads back into operations for retry.
type Executor interface {
	// Execute returns the item's terminal status on success. The status is
	// operation-specific (a create finishes with the provider's review
	// status, a delete with "deleted"), not a generic done flag.
	Execute(ctx context.Context, op Operation) (string, error)
	Decode(kind string, payload []byte) (Operation, error)
}

type Item struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	AccountID   int        `json:"account_id"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	op Operation
}

// Status is a point-in-time snapshot, safe to hand to a UI poller.
type Status struct {
	Queue      string `json:"queue"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Items      []Item `json:"items"`
}

// CancelResult reports what CancelPending did.
type CancelResult struct {
	Cancelled int `json:"cancelled"`
	Remaining int `json:"remaining"`
}

type Queue struct {
	name     string
	exec     Executor
	history  repository.QueueHistoryRepositoryInterface
	events   events.StatusPublisher
	interval time.Duration
	sleep    func(time.Duration)

	mu       sync.Mutex
	items    []*Item
	draining bool
}

// New builds a queue. interval is the mandatory gap between items; the
// provider rate-limits mutation calls per account.
func New(name string, exec Executor, history repository.QueueHistoryRepositoryInterface, pub events.StatusPublisher, interval time.Duration) *Queue {
	return &Queue{
		name:     name,
		exec:     exec,
		history:  history,
		events:   pub,
		interval: interval,
		sleep:    time.Sleep,
	}
}

// Enqueue appends the operation and starts the drain loop if the queue is
// idle. Safe for concurrent callers; only one drain loop ever runs.
func (q *Queue) Enqueue(op Operation) (string, error) {
	if op == nil {
		return "", fmt.Errorf("nil operation")
	}

	item := &Item{
		ID:        uuid.NewString(),
		Kind:      op.Kind(),
		AccountID: op.Account(),
		Status:    model.QueueItemStatusPending,
		CreatedAt: time.Now(),
		op:        op,
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	q.publishStatus()
	if start {
		go q.drain()
	}
	return item.ID, nil
}

// CancelPending removes every item still pending. The item currently
// processing, if any, is left alone and finishes normally.
func (q *Queue) CancelPending() CancelResult {
	q.mu.Lock()
	kept := q.items[:0]
	cancelled := 0
	for _, it := range q.items {
		if it.Status == model.QueueItemStatusPending {
			cancelled++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	remaining := len(q.items)
	q.mu.Unlock()

	q.publishStatus()
	return CancelResult{Cancelled: cancelled, Remaining: remaining}
}

// GetStatus returns a snapshot of the queue.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	s := Status{Queue: q.name, Total: len(q.items)}
	for _, it := range q.items {
		s.Items = append(s.Items, *it)
		switch it.Status {
		case model.QueueItemStatusPending:
			s.Pending++
		case model.QueueItemStatusProcessing:
			s.Processing++
		}
	}
	return s
}

// RetryFailedItem re-enqueues the operation recorded in a failed history
// row as a brand-new item. The failed row is left untouched; history is an
// audit trail, never mutated back out of a terminal state. overridePayload,
// when non-empty, replaces the recorded payload.
func (q *Queue) RetryFailedItem(historyID string, overridePayload []byte) (string, error) {
	row, err := q.history.GetByID(historyID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("history row %s not found", historyID)
	}
	if row.Status != model.QueueItemStatusFailed {
		return "", fmt.Errorf("history row %s is %s, only failed items can be retried", historyID, row.Status)
	}

	payload := []byte(row.Payload)
	if len(overridePayload) > 0 {
		payload = overridePayload
	}
	op, err := q.exec.Decode(row.Kind, payload)
	if err != nil {
		return "", fmt.Errorf("decode %s payload: %w", row.Kind, err)
	}
	return q.Enqueue(op)
}

// RetryAllFailures re-enqueues every failed history row for this queue.
func (q *Queue) RetryAllFailures() (int, error) {
	rows, err := q.history.ListFailed(q.name)
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, row := range rows {
		if _, err := q.RetryFailedItem(row.ID, nil); err != nil {
			log.Printf("[TaskQueue %s] retry of %s skipped: %v", q.name, row.ID, err)
			continue
		}
		retried++
	}
	return retried, nil
}

// drain processes items one at a time until the queue empties. One item's
// failure never aborts the loop; it is finalized as failed and the next item
// runs after the same interval.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		item.Status = model.QueueItemStatusProcessing
		q.mu.Unlock()

		q.persist(item)
		q.publishStatus()

		status, err := q.exec.Execute(context.Background(), item.op)

		now := time.Now()
		q.mu.Lock()
		item.ProcessedAt = &now
		if err != nil {
			item.Status = model.QueueItemStatusFailed
			item.LastError = err.Error()
			log.Printf("[TaskQueue %s] item %s (%s) failed: %v", q.name, item.ID, item.Kind, err)
		} else {
			item.Status = status
			item.LastError = ""
		}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.persist(item)
		q.publishStatus()

		q.sleep(q.interval)
	}
}

func (q *Queue) persist(item *Item) {
	payload, err := json.Marshal(item.op)
	if err != nil {
		log.Printf("[TaskQueue %s] marshal payload for %s: %v", q.name, item.ID, err)
		payload = []byte("{}")
	}
	row := &model.QueueHistory{
		ID:          item.ID,
		Queue:       q.name,
		Kind:        item.Kind,
		AccountID:   item.AccountID,
		Payload:     string(payload),
		Status:      item.Status,
		LastError:   item.LastError,
		CreatedAt:   item.CreatedAt,
		ProcessedAt: item.ProcessedAt,
	}
	if err := q.history.Upsert(row); err != nil {
		// History is best-effort from the loop's point of view; the
		// operation itself already ran or will run.
		log.Printf("[TaskQueue %s] persist history for %s: %v", q.name, item.ID, err)
	}
}

func (q *Queue) publishStatus() {
	q.mu.Lock()
	s := q.statusLocked()
	q.mu.Unlock()
	q.events.Publish(context.Background(), "queue:"+q.name, s)
}
