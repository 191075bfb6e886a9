package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch metrics
var (
	DispatchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_total",
			Help: "Total number of jobs processed by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: sent, partial, failed, skipped, error
	)

	DispatchRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_recipients_total",
			Help: "Total number of per-recipient results by type and status",
		},
		[]string{"type", "status"}, // sent, failed, skipped
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_job_duration_seconds",
			Help:    "Duration of dispatching one job",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of provider send calls by kind and result",
		},
		[]string{"kind", "result"}, // kind: template, text; result: ok, error
	)
)

// Intake metrics
var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_jobs_submitted_total",
			Help: "Total number of accepted job submissions by mode",
		},
		[]string{"mode"}, // inline, queued
	)

	JobsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_jobs_rejected_total",
			Help: "Total number of rejected job submissions by reason",
		},
		[]string{"reason"}, // validation, rate_limited, error
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Total number of API authentication failures",
		},
	)
)

// Webhook metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries by result",
		},
		[]string{"result"}, // accepted, bad_signature, unparseable
	)

	WebhookStatusesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_message_statuses_total",
			Help: "Total number of provider message status updates by status",
		},
		[]string{"status"}, // sent, delivered, read, failed
	)
)

// Consent metrics
var (
	ConsentLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_lookups_total",
			Help: "Total number of consent lookups by result",
		},
		[]string{"result"}, // allowed, suppressed, error
	)
)
