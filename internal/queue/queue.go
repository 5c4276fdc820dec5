// Package queue is the durable job queue boundary for campaign sends. Jobs
// are rate-limited at enqueue time via a not-before timestamp; the consumer
// waits out whatever remains of the delay before handing the job to the
// dispatch worker.
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// EnqueueOptions control per-job delivery.
type EnqueueOptions struct {
	Delay       time.Duration
	MaxAttempts int
}

// Handler processes one job delivery. attempt is zero-based; returning an
// error triggers the queue's retry policy until attempts are exhausted.
type Handler func(ctx context.Context, job model.CampaignJob, attempt int) error

type JobQueue interface {
	Enqueue(ctx context.Context, job model.CampaignJob, opts EnqueueOptions) error
	Consume(ctx context.Context, handler Handler) error
}

// InMemoryQueue runs jobs on goroutines with the same retry/backoff contract
// as the AMQP queue. Used by tests and single-process local mode.
type InMemoryQueue struct {
	mu       sync.Mutex
	handler  Handler
	backlog  []delivery
	Backoff  time.Duration
	wg       sync.WaitGroup
	consumed bool
}

type delivery struct {
	job         model.CampaignJob
	maxAttempts int
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{Backoff: 50 * time.Millisecond}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.CampaignJob, opts EnqueueOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if job.NotBefore.IsZero() {
		job.NotBefore = time.Now().Add(opts.Delay)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.consumed {
		q.backlog = append(q.backlog, delivery{job: job, maxAttempts: opts.MaxAttempts})
		return nil
	}
	q.dispatch(ctx, delivery{job: job, maxAttempts: opts.MaxAttempts})
	return nil
}

func (q *InMemoryQueue) Consume(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	q.handler = handler
	q.consumed = true
	backlog := q.backlog
	q.backlog = nil
	for _, d := range backlog {
		q.dispatch(ctx, d)
	}
	q.mu.Unlock()
	return nil
}

// dispatch runs a delivery with bounded retries and linear backoff, mirroring
// the AMQP consumer's requeue loop.
func (q *InMemoryQueue) dispatch(ctx context.Context, d delivery) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		if wait := time.Until(d.job.NotBefore); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		for attempt := 0; attempt < d.maxAttempts; attempt++ {
			err := q.handler(ctx, d.job, attempt)
			if err == nil {
				return
			}
			log.Printf("[InMemoryQueue] job message_id=%d attempt %d/%d failed: %v",
				d.job.MessageID, attempt+1, d.maxAttempts, err)
			if attempt+1 >= d.maxAttempts {
				return
			}
			select {
			case <-time.After(time.Duration(attempt+1) * q.Backoff):
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until all in-flight jobs finish. Test helper.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ JobQueue = (*InMemoryQueue)(nil)
