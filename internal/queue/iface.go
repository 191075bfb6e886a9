package queue

import (
	"context"
	"time"

	"github.com/sungwon/notify-dispatch/internal/job"
)

// EnqueueOptions carries per-message delivery hints. DeduplicationID
// suppresses duplicate sends inside the backend's dedup window; GroupID
// is the ordering group on FIFO backends.
type EnqueueOptions struct {
	DeduplicationID string
	GroupID         string
}

// ReceiveOptions controls a single receive call.
type ReceiveOptions struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// Enqueuer publishes message bodies to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, body []byte, opts EnqueueOptions) (string, error)
}

// Receiver consumes messages. A received message stays invisible for the
// visibility timeout and is redelivered unless deleted before it expires.
type Receiver interface {
	Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error
}

// DeadLetterQueue moves messages that exhausted their receive budget back
// onto the primary queue.
type DeadLetterQueue interface {
	Redrive(ctx context.Context, messageIDs []string) (int, error)
}

// Queue is a complete backend.
type Queue interface {
	Enqueuer
	Receiver
	DeadLetterQueue
}

// JobHandler processes one decoded, validated job. receiveCount is the
// transport's delivery count for the message, starting at 1.
type JobHandler interface {
	HandleJob(ctx context.Context, j *job.Job, receiveCount int) error
}
