package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/wablast-backend/internal/model"
)

const campaignJobsQueue = "campaign_jobs"

// AMQPQueue is the durable campaign job queue. Retries are done by
// republishing with an incremented x-retry-count header and a pushed-out
// not-before (nack/requeue would redeliver with the original headers, so the
// attempt count would never advance).
type AMQPQueue struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	Prefetch int
	Backoff  time.Duration
}

func NewAMQPQueue(url string, prefetch int, backoff time.Duration) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(
		campaignJobsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}
	return &AMQPQueue{conn: conn, ch: ch, Prefetch: prefetch, Backoff: backoff}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) Enqueue(ctx context.Context, job model.CampaignJob, opts EnqueueOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if job.NotBefore.IsZero() {
		job.NotBefore = time.Now().Add(opts.Delay)
	}
	return q.publish(job, 0, opts.MaxAttempts)
}

func (q *AMQPQueue) publish(job model.CampaignJob, retryCount, maxAttempts int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		campaignJobsQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers: amqp.Table{
				"x-retry-count":  int32(retryCount),
				"x-max-attempts": int32(maxAttempts),
			},
		},
	)
}

// Consume drains the queue until ctx is cancelled. Each delivery is acked
// exactly once: success and exhausted-attempt failures ack, retryable
// failures republish-then-ack.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	msgs, err := q.ch.Consume(
		campaignJobsQueue,
		"",
		false, // autoAck off for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var job model.CampaignJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Println("[AMQPQueue] invalid job payload:", err)
		d.Ack(false)
		return
	}

	retryCount := headerInt(d.Headers, "x-retry-count")
	maxAttempts := headerInt(d.Headers, "x-max-attempts")
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	// Honor the enqueue-time pacing delay.
	if wait := time.Until(job.NotBefore); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			d.Nack(false, true)
			return
		}
	}

	err := handler(ctx, job, retryCount)
	if err != nil && retryCount+1 < maxAttempts {
		backoff := time.Duration(retryCount+1) * q.Backoff
		job.NotBefore = time.Now().Add(backoff)
		if pubErr := q.publish(job, retryCount+1, maxAttempts); pubErr != nil {
			log.Println("[AMQPQueue] failed to republish for retry:", pubErr)
			d.Nack(false, true)
			return
		}
	}
	d.Ack(false)
}

func headerInt(headers amqp.Table, key string) int {
	switch v := headers[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

var _ JobQueue = (*AMQPQueue)(nil)
