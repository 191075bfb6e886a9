package queue

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewQueue creates the backend selected by cfg.Type. The Redis backend
// dials its own client from cfg and closes it on Close; consumerName identifies this process in
// the stream's consumer group and defaults to the hostname.
func NewQueue(ctx context.Context, cfg Config, consumerName string, log zerolog.Logger) (Queue, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryQueue(cfg.MaxReceiveCount, cfg.DedupWindow), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if consumerName == "" {
			consumerName, _ = os.Hostname()
		}
		q, err := NewRedisQueue(ctx, client, cfg, consumerName, log)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("create redis queue: %w", err)
		}
		q.closer = client
		return q, nil

	case "sqs":
		if !cfg.FIFO {
			return nil, fmt.Errorf("sqs queue %s: standard queues drop deduplication and group ids; use a FIFO queue", cfg.SQSQueueURL)
		}
		client, err := newAWSSQSClient(ctx, cfg.SQSRegion, cfg.SQSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		return NewSQSQueue(client, cfg.SQSQueueURL, cfg.SQSDLQURL, cfg.FIFO, log), nil

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
