package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisQueue is a Queue on a Redis Stream with one consumer group.
// Visibility timeouts are emulated with XAUTOCLAIM, deletes are XACK+XDEL,
// and receive counts live in a hash next to the stream. Messages received
// more than maxReceive times are moved to <stream>:dlq.
type RedisQueue struct {
	client      redis.Cmdable
	stream      string
	group       string
	consumer    string
	maxReceive  int
	dedupWindow time.Duration
	closer      io.Closer
	log         zerolog.Logger
}

// NewRedisQueue creates the consumer group if needed and returns the queue.
// consumer names this process inside the group.
func NewRedisQueue(ctx context.Context, client redis.Cmdable, cfg Config, consumer string, log zerolog.Logger) (*RedisQueue, error) {
	q := &RedisQueue{
		client:      client,
		stream:      cfg.Stream,
		group:       cfg.Group,
		consumer:    consumer,
		maxReceive:  cfg.MaxReceiveCount,
		dedupWindow: cfg.DedupWindow,
		log:         log.With().Str("component", "redis_queue").Str("stream", cfg.Stream).Logger(),
	}
	if err := q.createConsumerGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// createConsumerGroup creates the group on the stream. If the stream or
// group already exists, the error is ignored.
func (q *RedisQueue) createConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on stream %s: %w", q.group, q.stream, err)
	}
	return nil
}

// Close releases the client when the queue owns it.
func (q *RedisQueue) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer.Close()
}

func (q *RedisQueue) dlqStream() string { return q.stream + ":dlq" }
func (q *RedisQueue) receivesKey() string { return q.stream + ":receives" }
func (q *RedisQueue) delayedKey() string { return q.stream + ":delayed" }
func (q *RedisQueue) dedupKey(id string) string { return q.stream + ":dedup:" + id }

// Enqueue adds body to the stream. A DeduplicationID seen within the dedup
// window returns the first message's id instead of adding a copy.
func (q *RedisQueue) Enqueue(ctx context.Context, body []byte, opts EnqueueOptions) (string, error) {
	dedup := opts.DeduplicationID != "" && q.dedupWindow > 0
	if dedup {
		ok, err := q.client.SetNX(ctx, q.dedupKey(opts.DeduplicationID), "", q.dedupWindow).Result()
		if err != nil {
			return "", fmt.Errorf("dedup check: %w", err)
		}
		if !ok {
			DuplicatesSuppressedTotal.WithLabelValues("redis").Inc()
			existing, err := q.client.Get(ctx, q.dedupKey(opts.DeduplicationID)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return "", fmt.Errorf("dedup lookup: %w", err)
			}
			q.log.Debug().Str("dedup_id", opts.DeduplicationID).Msg("duplicate enqueue suppressed")
			return existing, nil
		}
	}

	id, err := q.add(ctx, body, opts.GroupID)
	if err != nil {
		if dedup {
			q.client.Del(ctx, q.dedupKey(opts.DeduplicationID))
		}
		return "", err
	}

	if dedup {
		if err := q.client.SetArgs(ctx, q.dedupKey(opts.DeduplicationID), id, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
			q.log.Warn().Err(err).Str("message_id", id).Msg("record dedup id failed")
		}
	}

	MessagesEnqueuedTotal.WithLabelValues("redis").Inc()
	return id, nil
}

func (q *RedisQueue) add(ctx context.Context, body []byte, groupID string) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"data":  string(body),
			"group": groupID,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream %s: %w", q.stream, err)
	}
	return id, nil
}

// Receive returns up to opts.MaxMessages messages: due delayed retries are
// promoted first, then entries idle longer than the visibility timeout are
// reclaimed, then new entries are read, blocking up to opts.WaitTime.
func (q *RedisQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	limit := opts.MaxMessages
	if limit <= 0 {
		limit = 1
	}

	if err := q.promoteDelayed(ctx); err != nil {
		return nil, err
	}

	var entries []redis.XMessage
	if opts.VisibilityTimeout > 0 {
		claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  opts.VisibilityTimeout,
			Start:    "0-0",
			Count:    int64(limit),
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("xautoclaim: %w", err)
		}
		entries = append(entries, claimed...)
	}

	if len(entries) < limit {
		block := opts.WaitTime
		if len(entries) > 0 || block <= 0 {
			block = -1
		}
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    int64(limit - len(entries)),
			Block:    block,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if len(entries) == 0 {
				return nil, fmt.Errorf("xreadgroup: %w", err)
			}
			q.log.Warn().Err(err).Msg("xreadgroup failed; returning reclaimed entries")
		}
		for _, s := range streams {
			entries = append(entries, s.Messages...)
		}
	}

	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		count, err := q.client.HIncrBy(ctx, q.receivesKey(), e.ID, 1).Result()
		if err != nil {
			return msgs, fmt.Errorf("count receive %s: %w", e.ID, err)
		}

		data, _ := e.Values["data"].(string)
		if q.maxReceive > 0 && int(count) > q.maxReceive {
			if err := q.deadLetter(ctx, e.ID, data, int(count)-1); err != nil {
				q.log.Error().Err(err).Str("message_id", e.ID).Msg("move to dlq failed")
			}
			continue
		}

		msgs = append(msgs, Message{
			ID:            e.ID,
			ReceiptHandle: e.ID,
			Body:          []byte(data),
			ReceiveCount:  int(count),
		})
	}
	return msgs, nil
}

// Delete acknowledges and removes the entry.
func (q *RedisQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAck(ctx, q.stream, q.group, receiptHandle)
		p.XDel(ctx, q.stream, receiptHandle)
		p.HDel(ctx, q.receivesKey(), receiptHandle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", receiptHandle, err)
	}
	return nil
}

// delayedEntry is a message parked by ChangeVisibility.
type delayedEntry struct {
	Body         string `json:"body"`
	Group        string `json:"group,omitempty"`
	ReceiveCount int    `json:"receive_count"`
}

// ChangeVisibility parks the message for d. Streams have no per-entry
// visibility, so the entry is removed and re-added once d has passed,
// keeping its receive count; the message id changes.
func (q *RedisQueue) ChangeVisibility(ctx context.Context, receiptHandle string, d time.Duration) error {
	entries, err := q.client.XRange(ctx, q.stream, receiptHandle, receiptHandle).Result()
	if err != nil {
		return fmt.Errorf("xrange %s: %w", receiptHandle, err)
	}
	if len(entries) == 0 {
		return ErrInvalidReceipt
	}

	count, err := q.client.HGet(ctx, q.receivesKey(), receiptHandle).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read receive count %s: %w", receiptHandle, err)
	}

	data, _ := entries[0].Values["data"].(string)
	group, _ := entries[0].Values["group"].(string)
	parked, err := json.Marshal(delayedEntry{Body: data, Group: group, ReceiveCount: count})
	if err != nil {
		return fmt.Errorf("marshal delayed entry: %w", err)
	}

	visibleAt := time.Now().Add(d)
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(visibleAt.UnixMilli()), Member: string(parked)})
		p.XAck(ctx, q.stream, q.group, receiptHandle)
		p.XDel(ctx, q.stream, receiptHandle)
		p.HDel(ctx, q.receivesKey(), receiptHandle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("park message %s: %w", receiptHandle, err)
	}
	return nil
}

// promoteDelayed re-adds parked messages whose delay has passed. ZREM
// decides the winner when several consumers race for the same member.
func (q *RedisQueue) promoteDelayed(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("read delayed: %w", err)
	}

	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return fmt.Errorf("claim delayed: %w", err)
		}
		if removed == 0 {
			continue
		}

		var d delayedEntry
		if err := json.Unmarshal([]byte(member), &d); err != nil {
			q.log.Error().Err(err).Msg("dropping malformed delayed entry")
			continue
		}
		id, err := q.add(ctx, []byte(d.Body), d.Group)
		if err != nil {
			return err
		}
		if d.ReceiveCount > 0 {
			if err := q.client.HSet(ctx, q.receivesKey(), id, d.ReceiveCount).Err(); err != nil {
				return fmt.Errorf("carry receive count: %w", err)
			}
		}
	}
	return nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, id, data string, receives int) error {
	letter, err := json.Marshal(DeadLetter{
		OriginalID:   id,
		Body:         []byte(data),
		ReceiveCount: receives,
		Reason:       ReasonMaxReceives,
		MovedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: q.dlqStream(),
			Values: map[string]interface{}{"data": string(letter)},
		})
		p.XAck(ctx, q.stream, q.group, id)
		p.XDel(ctx, q.stream, id)
		p.HDel(ctx, q.receivesKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", q.dlqStream(), err)
	}

	DLQMessagesTotal.WithLabelValues(ReasonMaxReceives).Inc()
	q.log.Warn().Str("message_id", id).Int("receive_count", receives).Msg("message moved to dlq")
	return nil
}

// DeadLetters returns up to count entries from the DLQ stream, oldest first.
// Each entry's ID is its DLQ stream id, which Redrive takes.
func (q *RedisQueue) DeadLetters(ctx context.Context, count int64) ([]DeadLetter, error) {
	entries, err := q.client.XRangeN(ctx, q.dlqStream(), "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange dlq: %w", err)
	}

	out := make([]DeadLetter, 0, len(entries))
	for _, e := range entries {
		letter, ok := decodeDeadLetter(e)
		if !ok {
			continue
		}
		out = append(out, letter)
	}
	return out, nil
}

func decodeDeadLetter(e redis.XMessage) (DeadLetter, bool) {
	data, ok := e.Values["data"].(string)
	if !ok {
		return DeadLetter{}, false
	}
	var letter DeadLetter
	if err := json.Unmarshal([]byte(data), &letter); err != nil {
		return DeadLetter{}, false
	}
	letter.ID = e.ID
	return letter, true
}

// Redrive re-adds the named DLQ entries to the primary stream with a fresh
// receive count and removes them from the DLQ. Unknown ids are skipped.
func (q *RedisQueue) Redrive(ctx context.Context, messageIDs []string) (int, error) {
	redriven := 0

	for _, id := range messageIDs {
		entries, err := q.client.XRange(ctx, q.dlqStream(), id, id).Result()
		if err != nil {
			return redriven, fmt.Errorf("xrange dlq message %s: %w", id, err)
		}
		if len(entries) == 0 {
			continue
		}

		letter, ok := decodeDeadLetter(entries[0])
		if !ok {
			continue
		}

		if _, err := q.add(ctx, letter.Body, ""); err != nil {
			return redriven, fmt.Errorf("re-enqueue message %s: %w", letter.OriginalID, err)
		}
		if err := q.client.XDel(ctx, q.dlqStream(), id).Err(); err != nil {
			return redriven, fmt.Errorf("xdel dlq message %s: %w", id, err)
		}

		DLQRedrivenTotal.Inc()
		redriven++
	}

	return redriven, nil
}
