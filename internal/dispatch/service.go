// Package dispatch turns a validated job into per-recipient provider sends.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sungwon/notify-dispatch/internal/consent"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/metrics"
	"github.com/sungwon/notify-dispatch/internal/provider"
	"github.com/sungwon/notify-dispatch/internal/templates"
)

// BulkBatchSize is the number of recipients handled per bulk chunk.
const BulkBatchSize = 50

// Renderer renders a named template against a payload.
type Renderer interface {
	Render(ctx context.Context, templateName string, payload map[string]any, language string) (templates.Rendered, error)
}

// ProcessError is returned when a job aborts part-way. Results holds every
// result produced before the abort, including the failing recipient.
type ProcessError struct {
	JobID   string
	Results []job.SendResult
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("dispatch job %s: %v", e.JobID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// PartialResults extracts the results carried by a *ProcessError in err's
// chain, or nil.
func PartialResults(err error) []job.SendResult {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Results
	}
	return nil
}

// Service dispatches jobs. It holds no per-job state and is safe for
// concurrent use when its collaborators are.
type Service struct {
	consent  consent.Store
	renderer Renderer
	client   provider.Client
	log      zerolog.Logger
}

// NewService creates a dispatch Service.
func NewService(store consent.Store, renderer Renderer, client provider.Client, log zerolog.Logger) *Service {
	return &Service{
		consent:  store,
		renderer: renderer,
		client:   client,
		log:      log,
	}
}

// Process dispatches j and returns one result per recipient. Recipients
// suppressed by consent are skipped without contacting the provider. The
// first render or send failure aborts the job; the error is a *ProcessError
// carrying the results produced so far.
func (s *Service) Process(ctx context.Context, j *job.Job) ([]job.SendResult, error) {
	start := time.Now()
	log := logger.Ctx(ctx, s.log).With().
		Str("job_id", j.ID).
		Str("tenant_id", j.TenantID).
		Str("job_type", string(j.Type)).
		Logger()

	skipped, allowed, err := s.partition(ctx, j)
	if err != nil {
		metrics.DispatchJobsTotal.WithLabelValues(string(j.Type), "error").Inc()
		return nil, &ProcessError{JobID: j.ID, Err: err}
	}

	if len(allowed) == 0 {
		log.Info().Int("skipped", len(skipped)).Msg("no consenting recipients")
		s.record(j, skipped, "skipped", start)
		return skipped, nil
	}

	var produced []job.SendResult
	switch j.Type {
	case job.TypeTransactional, job.TypeOTP:
		produced, err = s.sendShared(ctx, j, allowed)
	case job.TypeBulk:
		produced, err = s.sendBulk(ctx, j, allowed)
	case job.TypeSessionText:
		produced, err = s.sendSessionText(ctx, j, allowed)
	default:
		err = fmt.Errorf("unsupported job type %q", j.Type)
	}

	results := append(skipped, produced...)

	if err != nil {
		log.Error().
			Err(err).
			Int("sent", countStatus(results, job.ResultSent)).
			Int("skipped", len(skipped)).
			Msg("job dispatch aborted")
		s.record(j, results, "error", start)
		return results, &ProcessError{JobID: j.ID, Results: results, Err: err}
	}

	status := job.Summarize(results)
	log.Info().
		Str("status", string(status)).
		Int("sent", countStatus(results, job.ResultSent)).
		Int("skipped", len(skipped)).
		Dur("duration", time.Since(start)).
		Msg("job dispatched")
	s.record(j, results, string(status), start)
	return results, nil
}

// partition splits recipients into consent-skipped results and recipients
// that may be messaged. Any lookup error aborts the whole job.
func (s *Service) partition(ctx context.Context, j *job.Job) ([]job.SendResult, []job.Recipient, error) {
	var skipped []job.SendResult
	allowed := make([]job.Recipient, 0, len(j.Recipients))

	for _, r := range j.Recipients {
		r.Phone = job.NormalizePhone(r.Phone)
		rec, err := s.consent.LoadRecipient(ctx, j.TenantID, r.Phone)
		if err != nil {
			metrics.ConsentLookupsTotal.WithLabelValues("error").Inc()
			return nil, nil, fmt.Errorf("consent lookup for %s: %w", r.Phone, err)
		}
		if !consent.Allowed(rec) {
			metrics.ConsentLookupsTotal.WithLabelValues("suppressed").Inc()
			skipped = append(skipped, job.SendResult{
				Recipient: r.Phone,
				Status:    job.ResultSkipped,
				Error:     job.SkipReasonConsent,
			})
			continue
		}
		metrics.ConsentLookupsTotal.WithLabelValues("allowed").Inc()
		allowed = append(allowed, r)
	}
	return skipped, allowed, nil
}

// sendShared renders once and sends the same parameters to every recipient.
func (s *Service) sendShared(ctx context.Context, j *job.Job, allowed []job.Recipient) ([]job.SendResult, error) {
	rendered, err := s.renderer.Render(ctx, j.TemplateName, j.Payload, j.Language)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", j.TemplateName, err)
	}

	results := make([]job.SendResult, 0, len(allowed))
	for _, r := range allowed {
		res, err := s.sendTemplate(ctx, j, r.Phone, rendered.Parameters)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// sendBulk renders per recipient, merging substitutions over the job payload,
// in chunks of BulkBatchSize.
func (s *Service) sendBulk(ctx context.Context, j *job.Job, allowed []job.Recipient) ([]job.SendResult, error) {
	results := make([]job.SendResult, 0, len(allowed))

	for start := 0; start < len(allowed); start += BulkBatchSize {
		end := min(start+BulkBatchSize, len(allowed))

		for _, r := range allowed[start:end] {
			rendered, err := s.renderer.Render(ctx, j.TemplateName, j.MergedPayload(r), j.Language)
			if err != nil {
				results = append(results, failed(r.Phone, err))
				return results, fmt.Errorf("render %s for %s: %w", j.TemplateName, r.Phone, err)
			}

			res, err := s.sendTemplate(ctx, j, r.Phone, rendered.Parameters)
			results = append(results, res)
			if err != nil {
				return results, err
			}
		}

		s.log.Debug().
			Str("job_id", j.ID).
			Int("batch_start", start).
			Int("batch_end", end).
			Msg("bulk batch sent")
	}
	return results, nil
}

// sendSessionText renders once and sends the text as a free-form message.
func (s *Service) sendSessionText(ctx context.Context, j *job.Job, allowed []job.Recipient) ([]job.SendResult, error) {
	rendered, err := s.renderer.Render(ctx, j.TemplateName, j.Payload, j.Language)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", j.TemplateName, err)
	}

	results := make([]job.SendResult, 0, len(allowed))
	for _, r := range allowed {
		id, err := s.client.SendTextMessage(ctx, r.Phone, rendered.Text)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues("text", "error").Inc()
			results = append(results, failed(r.Phone, err))
			return results, fmt.Errorf("send text to %s: %w", r.Phone, err)
		}
		metrics.ProviderRequestsTotal.WithLabelValues("text", "ok").Inc()
		results = append(results, job.SendResult{Recipient: r.Phone, Status: job.ResultSent, MessageID: id})
	}
	return results, nil
}

func (s *Service) sendTemplate(ctx context.Context, j *job.Job, to string, params []templates.Parameter) (job.SendResult, error) {
	id, err := s.client.SendTemplateMessage(ctx, provider.TemplateMessage{
		To:           to,
		TemplateName: j.TemplateName,
		Language:     j.Language,
		Parameters:   params,
	})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("template", "error").Inc()
		return failed(to, err), fmt.Errorf("send template to %s: %w", to, err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues("template", "ok").Inc()
	return job.SendResult{Recipient: to, Status: job.ResultSent, MessageID: id}, nil
}

func (s *Service) record(j *job.Job, results []job.SendResult, outcome string, start time.Time) {
	jt := string(j.Type)
	metrics.DispatchJobsTotal.WithLabelValues(jt, outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(jt).Observe(time.Since(start).Seconds())
	for _, r := range results {
		metrics.DispatchRecipientsTotal.WithLabelValues(jt, string(r.Status)).Inc()
	}
}

func failed(to string, err error) job.SendResult {
	return job.SendResult{Recipient: to, Status: job.ResultFailed, Error: err.Error()}
}

func countStatus(results []job.SendResult, status job.ResultStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
