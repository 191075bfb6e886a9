package queue

import (
	"math/rand/v2"
	"time"
)

// Default retry schedule durations.
var retrySchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// RetryStrategy spaces out redeliveries of failed messages by extending
// their visibility timeout. The queue's receive budget still decides when a
// message goes to the dead-letter queue.
type RetryStrategy struct {
	MaxRetries int
	Schedule   []time.Duration
}

// NewRetryStrategy creates a RetryStrategy with the default schedule and the
// given maximum retry count.
func NewRetryStrategy(maxRetries int) *RetryStrategy {
	return &RetryStrategy{
		MaxRetries: maxRetries,
		Schedule:   retrySchedule,
	}
}

// ShouldRetry reports whether a message received receiveCount times will be
// delivered again.
func (r *RetryStrategy) ShouldRetry(receiveCount int) bool {
	return r.MaxRetries <= 0 || receiveCount < r.MaxRetries
}

// NextBackoff returns the backoff duration after the given receive with
// jitter applied: base * (0.5 + rand * 0.5).
func (r *RetryStrategy) NextBackoff(receiveCount int) time.Duration {
	idx := receiveCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.Schedule) {
		idx = len(r.Schedule) - 1
	}

	base := r.Schedule[idx]
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(base) * jitter)
}
