package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/queue"
)

// processor dispatches one job. *dispatch.Service satisfies it.
type processor interface {
	Process(ctx context.Context, j *job.Job) ([]job.SendResult, error)
}

// InlineSubmitter dispatches the job within the request.
type InlineSubmitter struct {
	processor processor
	log       zerolog.Logger
}

// NewInlineSubmitter creates an InlineSubmitter.
func NewInlineSubmitter(p processor, log zerolog.Logger) *InlineSubmitter {
	return &InlineSubmitter{processor: p, log: log}
}

// Mode implements JobSubmitter.
func (s *InlineSubmitter) Mode() string { return queue.ModeInline }

// Submit dispatches j and returns its per-recipient results. A dispatch
// error is returned as is so callers can reach the partial results.
func (s *InlineSubmitter) Submit(ctx context.Context, j *job.Job) (*Response, error) {
	results, err := s.processor.Process(ctx, j)
	if err != nil {
		return nil, err
	}
	return &Response{
		JobID:          j.ID,
		Status:         StatusProcessed,
		IdempotencyKey: j.IdempotencyKey,
		Outcome:        job.Summarize(results),
		Results:        results,
	}, nil
}

// QueuedSubmitter enqueues the job for the queue worker. The idempotency key
// doubles as the queue deduplication id and the tenant as the FIFO group.
type QueuedSubmitter struct {
	enqueuer queue.Enqueuer
	log      zerolog.Logger
}

// NewQueuedSubmitter creates a QueuedSubmitter backed by the given Enqueuer.
func NewQueuedSubmitter(enqueuer queue.Enqueuer, log zerolog.Logger) *QueuedSubmitter {
	return &QueuedSubmitter{enqueuer: enqueuer, log: log}
}

// Mode implements JobSubmitter.
func (s *QueuedSubmitter) Mode() string { return queue.ModeQueued }

// Submit serializes j and enqueues it.
func (s *QueuedSubmitter) Submit(ctx context.Context, j *job.Job) (*Response, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	messageID, err := s.enqueuer.Enqueue(ctx, body, queue.EnqueueOptions{
		DeduplicationID: j.IdempotencyKey,
		GroupID:         j.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.Debug().
		Str("job_id", j.ID).
		Str("message_id", messageID).
		Msg("job enqueued")

	return &Response{
		JobID:          j.ID,
		Status:         StatusQueued,
		IdempotencyKey: j.IdempotencyKey,
		MessageID:      messageID,
	}, nil
}
