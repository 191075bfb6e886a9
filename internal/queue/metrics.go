package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	MessagesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_enqueued_total",
			Help: "Total number of messages enqueued by backend",
		},
		[]string{"backend"},
	)

	DuplicatesSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_duplicates_suppressed_total",
			Help: "Total number of enqueues dropped by the dedup window",
		},
		[]string{"backend"},
	)

	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_processed_total",
			Help: "Total number of messages processed by status",
		},
		[]string{"status"}, // processed, failed, invalid
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_message_processing_duration_seconds",
			Help:    "Duration of message processing operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReceiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_receive_errors_total",
			Help: "Total number of failed receive calls",
		},
	)

	DLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dlq_messages_total",
			Help: "Total number of messages moved to DLQ by reason",
		},
		[]string{"reason"},
	)

	DLQRedrivenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_dlq_redriven_total",
			Help: "Total number of messages moved from the DLQ back to the primary queue",
		},
	)
)
