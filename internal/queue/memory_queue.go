package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidReceipt is returned when a receipt handle does not match the
// message's current delivery.
var ErrInvalidReceipt = errors.New("queue: receipt handle is not current")

type memoryEntry struct {
	id           string
	body         []byte
	receiveCount int
	visibleAt    time.Time
	receipt      string
}

// MemoryQueue is an in-process Queue with visibility timeouts, a dedup
// window, receive counting and dead-lettering. It does not survive a
// restart and is meant for development and tests.
type MemoryQueue struct {
	mu          sync.Mutex
	entries     []*memoryEntry
	dedup       map[string]dedupRecord
	dead        []DeadLetter
	maxReceive  int
	dedupWindow time.Duration
	notify      chan struct{}
	now         func() time.Time
}

type dedupRecord struct {
	messageID string
	expires   time.Time
}

// NewMemoryQueue creates a MemoryQueue. maxReceive <= 0 disables
// dead-lettering; dedupWindow <= 0 disables deduplication.
func NewMemoryQueue(maxReceive int, dedupWindow time.Duration) *MemoryQueue {
	return &MemoryQueue{
		dedup:       make(map[string]dedupRecord),
		maxReceive:  maxReceive,
		dedupWindow: dedupWindow,
		notify:      make(chan struct{}, 1),
		now:         time.Now,
	}
}

// Enqueue appends body. A repeated DeduplicationID inside the window returns
// the original message id without adding a second copy.
func (q *MemoryQueue) Enqueue(_ context.Context, body []byte, opts EnqueueOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if opts.DeduplicationID != "" && q.dedupWindow > 0 {
		if rec, ok := q.dedup[opts.DeduplicationID]; ok && now.Before(rec.expires) {
			DuplicatesSuppressedTotal.WithLabelValues("memory").Inc()
			return rec.messageID, nil
		}
	}

	id := uuid.New().String()
	q.entries = append(q.entries, &memoryEntry{
		id:        id,
		body:      append([]byte(nil), body...),
		visibleAt: now,
	})
	if opts.DeduplicationID != "" && q.dedupWindow > 0 {
		q.dedup[opts.DeduplicationID] = dedupRecord{messageID: id, expires: now.Add(q.dedupWindow)}
	}

	MessagesEnqueuedTotal.WithLabelValues("memory").Inc()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Receive returns up to opts.MaxMessages visible messages, waiting up to
// opts.WaitTime for at least one to become available.
func (q *MemoryQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	limit := opts.MaxMessages
	if limit <= 0 {
		limit = 1
	}
	deadline := q.now().Add(opts.WaitTime)

	for {
		if msgs := q.take(limit, opts.VisibilityTimeout); len(msgs) > 0 {
			return msgs, nil
		}

		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return nil, nil
		}
		// Poll at least every 50ms so messages whose visibility expires
		// during the wait are picked up.
		wait := min(remaining, 50*time.Millisecond)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *MemoryQueue) take(limit int, visibility time.Duration) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Message
	kept := q.entries[:0]
	for _, e := range q.entries {
		if len(out) >= limit || now.Before(e.visibleAt) {
			kept = append(kept, e)
			continue
		}
		if q.maxReceive > 0 && e.receiveCount >= q.maxReceive {
			q.dead = append(q.dead, DeadLetter{
				ID:           uuid.New().String(),
				OriginalID:   e.id,
				Body:         e.body,
				ReceiveCount: e.receiveCount,
				Reason:       ReasonMaxReceives,
				MovedAt:      now,
			})
			DLQMessagesTotal.WithLabelValues(ReasonMaxReceives).Inc()
			continue
		}

		e.receiveCount++
		e.receipt = uuid.New().String()
		e.visibleAt = now.Add(visibility)
		kept = append(kept, e)
		out = append(out, Message{
			ID:            e.id,
			ReceiptHandle: e.receipt,
			Body:          append([]byte(nil), e.body...),
			ReceiveCount:  e.receiveCount,
		})
	}
	q.entries = kept
	return out
}

// Delete removes the message whose current receipt is receiptHandle.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return ErrInvalidReceipt
}

// ChangeVisibility makes the message visible again d from now.
func (q *MemoryQueue) ChangeVisibility(_ context.Context, receiptHandle string, d time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.receipt == receiptHandle {
			e.visibleAt = q.now().Add(d)
			return nil
		}
	}
	return ErrInvalidReceipt
}

// Redrive moves the named dead letters back to the primary queue with a
// fresh receive count.
func (q *MemoryQueue) Redrive(_ context.Context, messageIDs []string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}

	now := q.now()
	redriven := 0
	kept := q.dead[:0]
	for _, d := range q.dead {
		if _, ok := wanted[d.ID]; !ok {
			kept = append(kept, d)
			continue
		}
		q.entries = append(q.entries, &memoryEntry{
			id:        d.OriginalID,
			body:      d.Body,
			visibleAt: now,
		})
		DLQRedrivenTotal.Inc()
		redriven++
	}
	q.dead = kept
	return redriven, nil
}

// DeadLetters returns a snapshot of the dead-letter list.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.dead...)
}

// Len returns the number of messages in the primary queue, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
