package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SQS hard limits.
const (
	sqsMaxBatch       = 10
	sqsMaxWaitSeconds = 20
	sqsMaxVisibility  = 12 * time.Hour
)

// defaultGroupID is used on FIFO queues when the caller supplies none.
const defaultGroupID = "default"

// ErrRedriveUnavailable is returned by Redrive when no dead-letter queue URL
// is configured.
var ErrRedriveUnavailable = errors.New("queue: dead-letter queue not configured")

// SQSQueue is a Queue backed by AWS SQS. Receive counts come from
// ApproximateReceiveCount and dead-lettering is done by the queue's own
// redrive policy.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	dlqURL   string
	fifo     bool
	log      zerolog.Logger
}

// NewSQSQueue creates an SQSQueue for queueURL. dlqURL may be empty.
func NewSQSQueue(client sqsAPI, queueURL, dlqURL string, fifo bool, log zerolog.Logger) *SQSQueue {
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		dlqURL:   dlqURL,
		fifo:     fifo,
		log:      log.With().Str("component", "sqs_queue").Logger(),
	}
}

// Enqueue sends body to the queue. Deduplication and group ids are only
// sent to FIFO queues; standard queues reject them.
func (q *SQSQueue) Enqueue(ctx context.Context, body []byte, opts EnqueueOptions) (string, error) {
	in := &sqsSendInput{
		QueueURL:    q.queueURL,
		MessageBody: string(body),
	}
	if q.fifo {
		in.MessageDeduplicationID = opts.DeduplicationID
		in.MessageGroupID = opts.GroupID
		if in.MessageGroupID == "" {
			in.MessageGroupID = defaultGroupID
		}
	}

	out, err := q.client.SendMessage(ctx, in)
	if err != nil {
		return "", fmt.Errorf("sqs send message: %w", err)
	}

	MessagesEnqueuedTotal.WithLabelValues("sqs").Inc()
	q.log.Debug().Str("message_id", out.MessageID).Msg("message enqueued to sqs")
	return out.MessageID, nil
}

// Receive long-polls for up to opts.MaxMessages messages.
func (q *SQSQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqsReceiveInput{
		QueueURL:            q.queueURL,
		MaxNumberOfMessages: clampBatch(opts.MaxMessages),
		WaitTimeSeconds:     clampSeconds(opts.WaitTime, sqsMaxWaitSeconds*time.Second),
		VisibilityTimeout:   clampSeconds(opts.VisibilityTimeout, sqsMaxVisibility),
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            m.MessageID,
			ReceiptHandle: m.ReceiptHandle,
			Body:          []byte(m.Body),
			ReceiveCount:  m.ReceiveCount,
		})
	}
	return msgs, nil
}

// Delete removes a received message.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if err := q.client.DeleteMessage(ctx, &sqsDeleteInput{
		QueueURL:      q.queueURL,
		ReceiptHandle: receiptHandle,
	}); err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// ChangeVisibility resets the message's visibility timeout to d from now.
func (q *SQSQueue) ChangeVisibility(ctx context.Context, receiptHandle string, d time.Duration) error {
	if err := q.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
		QueueURL:          q.queueURL,
		ReceiptHandle:     receiptHandle,
		VisibilityTimeout: clampSeconds(d, sqsMaxVisibility),
	}); err != nil {
		return fmt.Errorf("sqs change visibility: %w", err)
	}
	return nil
}

// Redrive moves the named messages from the dead-letter queue back to the
// primary queue. SQS cannot fetch by id, so one batch is polled from the
// DLQ; matches are re-sent and deleted, the rest are released immediately.
func (q *SQSQueue) Redrive(ctx context.Context, messageIDs []string) (int, error) {
	if q.dlqURL == "" {
		return 0, ErrRedriveUnavailable
	}
	if len(messageIDs) == 0 {
		return 0, nil
	}

	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}

	out, err := q.client.ReceiveMessage(ctx, &sqsReceiveInput{
		QueueURL:            q.dlqURL,
		MaxNumberOfMessages: sqsMaxBatch,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return 0, fmt.Errorf("sqs receive from dlq: %w", err)
	}

	redriven := 0
	for _, m := range out.Messages {
		if _, ok := wanted[m.MessageID]; !ok {
			if err := q.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
				QueueURL:      q.dlqURL,
				ReceiptHandle: m.ReceiptHandle,
			}); err != nil {
				q.log.Warn().Err(err).Str("message_id", m.MessageID).Msg("release dlq message failed")
			}
			continue
		}

		if _, err := q.Enqueue(ctx, []byte(m.Body), EnqueueOptions{DeduplicationID: "redrive-" + m.MessageID}); err != nil {
			return redriven, fmt.Errorf("re-enqueue message %s: %w", m.MessageID, err)
		}
		if err := q.client.DeleteMessage(ctx, &sqsDeleteInput{
			QueueURL:      q.dlqURL,
			ReceiptHandle: m.ReceiptHandle,
		}); err != nil {
			return redriven, fmt.Errorf("delete dlq message %s: %w", m.MessageID, err)
		}

		DLQRedrivenTotal.Inc()
		redriven++
	}

	q.log.Info().
		Int("requested", len(messageIDs)).
		Int("redriven", redriven).
		Msg("sqs dlq redrive completed")
	return redriven, nil
}

func clampBatch(n int) int32 {
	if n <= 0 {
		return 1
	}
	if n > sqsMaxBatch {
		return sqsMaxBatch
	}
	return int32(n)
}

func clampSeconds(d, limit time.Duration) int32 {
	if d < 0 {
		return 0
	}
	if d > limit {
		d = limit
	}
	return int32(d / time.Second)
}
