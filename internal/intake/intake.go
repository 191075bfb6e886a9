// Package intake validates submitted jobs, assigns their identity and hands
// them to the configured submitter.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/metrics"
)

// Response statuses.
const (
	StatusQueued    = "queued"
	StatusProcessed = "processed"
)

// ErrRateLimited is returned when the tenant's submission budget is spent.
var ErrRateLimited = errors.New("intake: tenant rate limit exceeded")

// Request is a job submission as received from a client.
type Request struct {
	TenantID       string          `json:"tenantId"`
	Type           job.Type        `json:"type"`
	TemplateName   string          `json:"templateName"`
	Language       string          `json:"language"`
	Payload        map[string]any  `json:"payload"`
	Recipients     []job.Recipient `json:"recipients"`
	Priority       job.Priority    `json:"priority"`
	ScheduledAt    *time.Time      `json:"scheduledAt,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// Response describes what happened to an accepted job. Results is only set
// for inline processing; MessageID only for queued submission.
//
// JobID is minted per submission. When a queued resubmission reuses an
// IdempotencyKey inside the queue's dedup window, the queue keeps the first
// job and drops the new one, so JobID names a job that never runs. Clients
// should correlate resubmissions by IdempotencyKey and MessageID, which
// identify the job actually enqueued.
type Response struct {
	JobID          string           `json:"jobId"`
	Status         string           `json:"status"`
	IdempotencyKey string           `json:"idempotencyKey"`
	Outcome        job.Status       `json:"outcome,omitempty"`
	Results        []job.SendResult `json:"results,omitempty"`
	MessageID      string           `json:"messageId,omitempty"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []job.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// JobSubmitter hands a fully formed job to processing.
type JobSubmitter interface {
	Submit(ctx context.Context, j *job.Job) (*Response, error)
	Mode() string
}

// Service is the single entry point for new jobs.
type Service struct {
	submitter       JobSubmitter
	limiter         *TenantLimiter
	defaultLanguage string
	now             func() time.Time
	log             zerolog.Logger
}

// NewService creates an intake Service. limiter may be nil.
func NewService(submitter JobSubmitter, limiter *TenantLimiter, defaultLanguage string, log zerolog.Logger) *Service {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Service{
		submitter:       submitter,
		limiter:         limiter,
		defaultLanguage: defaultLanguage,
		now:             time.Now,
		log:             log.With().Str("component", "intake").Logger(),
	}
}

// Submit validates req, builds the job and hands it off. Validation
// failures return *ValidationError; a spent rate budget returns
// ErrRateLimited.
func (s *Service) Submit(ctx context.Context, req Request) (*Response, error) {
	j := &job.Job{
		TenantID:       strings.TrimSpace(req.TenantID),
		Type:           req.Type,
		TemplateName:   req.TemplateName,
		Language:       req.Language,
		Payload:        req.Payload,
		Recipients:     req.Recipients,
		Priority:       req.Priority,
		ScheduledAt:    req.ScheduledAt,
		IdempotencyKey: req.IdempotencyKey,
	}
	if j.Language == "" {
		j.Language = s.defaultLanguage
	}
	if j.Priority == "" {
		j.Priority = job.PriorityNormal
	}

	if errs := job.Validate(j); len(errs) > 0 {
		metrics.JobsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Fields: errs}
	}
	j.NormalizeRecipients()

	if s.limiter != nil && !s.limiter.Allow(j.TenantID) {
		metrics.JobsRejectedTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	j.ID = uuid.New().String()
	j.CreatedAt = s.now().UTC()
	j.Status = job.StatusPending
	if j.IdempotencyKey == "" {
		j.IdempotencyKey = job.IdempotencyKey(j.Payload, j.ID, j.CreatedAt)
	}

	log := logger.Ctx(ctx, s.log).With().
		Str("job_id", j.ID).
		Str("tenant_id", j.TenantID).
		Str("job_type", string(j.Type)).
		Int("recipients", len(j.Recipients)).
		Logger()

	resp, err := s.submitter.Submit(ctx, j)
	if err != nil {
		metrics.JobsRejectedTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("mode", s.submitter.Mode()).Msg("job submission failed")
		return nil, fmt.Errorf("submit job %s: %w", j.ID, err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(s.submitter.Mode()).Inc()
	log.Info().Str("mode", s.submitter.Mode()).Str("status", resp.Status).Msg("job accepted")
	return resp, nil
}
