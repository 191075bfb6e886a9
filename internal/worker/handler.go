// Package worker connects the queue consumer to the dispatch service.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/notify-dispatch/internal/dispatch"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/provider"
)

// processor dispatches one job. *dispatch.Service satisfies it.
type processor interface {
	Process(ctx context.Context, j *job.Job) ([]job.SendResult, error)
}

// Handler implements queue.JobHandler.
type Handler struct {
	processor processor
	log       zerolog.Logger
}

// NewHandler creates a Handler that dispatches queued jobs.
func NewHandler(p processor, log zerolog.Logger) *Handler {
	return &Handler{
		processor: p,
		log:       log.With().Str("component", "worker").Logger(),
	}
}

// HandleJob records the delivery attempt and dispatches the job. A non-nil
// error leaves the message on the queue for redelivery; recipients already
// sent on an earlier attempt will be sent again.
func (h *Handler) HandleJob(ctx context.Context, j *job.Job, receiveCount int) error {
	j.Attempts = receiveCount

	log := logger.Ctx(ctx, h.log).With().
		Str("job_id", j.ID).
		Str("tenant_id", j.TenantID).
		Int("attempts", j.Attempts).
		Logger()

	start := time.Now()
	results, err := h.processor.Process(ctx, j)
	if err != nil {
		partial := dispatch.PartialResults(err)
		log.Error().
			Err(err).
			Bool("permanent", provider.IsPermanent(err)).
			Int("results_before_abort", len(partial)).
			Int("sent_before_abort", count(partial, job.ResultSent)).
			Msg("queued job failed")
		return fmt.Errorf("process job %s: %w", j.ID, err)
	}

	j.Status = job.Summarize(results)
	log.Info().
		Str("status", string(j.Status)).
		Int("sent", count(results, job.ResultSent)).
		Int("failed", count(results, job.ResultFailed)).
		Int("skipped", count(results, job.ResultSkipped)).
		Dur("duration", time.Since(start)).
		Msg("queued job processed")
	return nil
}

func count(results []job.SendResult, status job.ResultStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
