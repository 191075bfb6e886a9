// Package job defines the unit of dispatch work shared by intake, the queue
// consumer and the dispatch service.
package job

import (
	"time"
)

// Type selects the rendering and dispatch strategy for a job.
type Type string

const (
	TypeTransactional Type = "transactional"
	TypeBulk          Type = "bulk"
	TypeOTP           Type = "otp"
	TypeSessionText   Type = "session_text"
)

// Valid reports whether t is one of the enumerated job types.
func (t Type) Valid() bool {
	switch t {
	case TypeTransactional, TypeBulk, TypeOTP, TypeSessionText:
		return true
	}
	return false
}

// Priority is advisory; it never changes dispatch correctness.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status summarizes a job outcome. The per-recipient results are authoritative.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Job is a unit of dispatch work. ID and IdempotencyKey are assigned at intake
// and reused unchanged on every redelivery.
type Job struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	Type           Type           `json:"type"`
	TemplateName   string         `json:"templateName"`
	Language       string         `json:"language"`
	Payload        map[string]any `json:"payload,omitempty"`
	Recipients     []Recipient    `json:"recipients"`
	Priority       Priority       `json:"priority"`
	ScheduledAt    *time.Time     `json:"scheduledAt,omitempty"`
	Attempts       int            `json:"attempts"`
	Status         Status         `json:"status"`
	IdempotencyKey string         `json:"idempotencyKey"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Recipient is one addressee of a job. Substitutions are merged over the job
// payload for bulk jobs only.
type Recipient struct {
	Phone         string         `json:"phone"`
	Name          string         `json:"name,omitempty"`
	Substitutions map[string]any `json:"substitutions,omitempty"`
}

// ResultStatus is the per-recipient outcome.
type ResultStatus string

const (
	ResultSent    ResultStatus = "sent"
	ResultFailed  ResultStatus = "failed"
	ResultSkipped ResultStatus = "skipped"
)

// SkipReasonConsent is recorded for recipients suppressed by consent policy.
const SkipReasonConsent = "ConsentMissingOrDisabled"

// SendResult records what happened to one recipient of one job.
type SendResult struct {
	Recipient string       `json:"recipient"`
	Status    ResultStatus `json:"status"`
	MessageID string       `json:"messageId,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Summarize collapses a result list into a job-level status. Skipped results
// do not count against the job, so a job whose recipients were all skipped
// is sent: it finished with nothing left to deliver and nothing failed.
func Summarize(results []SendResult) Status {
	if len(results) == 0 {
		return StatusPending
	}

	var sent, failed int
	for _, r := range results {
		switch r.Status {
		case ResultSent:
			sent++
		case ResultFailed:
			failed++
		}
	}

	switch {
	case failed == 0:
		return StatusSent
	case sent == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// MergedPayload returns the job payload with the recipient's substitutions
// laid over it. The job payload is never mutated.
func (j *Job) MergedPayload(r Recipient) map[string]any {
	merged := make(map[string]any, len(j.Payload)+len(r.Substitutions))
	for k, v := range j.Payload {
		merged[k] = v
	}
	for k, v := range r.Substitutions {
		merged[k] = v
	}
	return merged
}
