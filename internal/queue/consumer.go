package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Consumer polls a Receiver and hands each message to a JobHandler. A batch
// is processed concurrently up to cfg.Concurrency; the loop does not receive
// again until the whole batch is done.
type Consumer struct {
	receiver Receiver
	handler  JobHandler
	retry    *RetryStrategy
	config   Config
	log      zerolog.Logger

	stopping atomic.Bool
	done     chan struct{}
	cancel   context.CancelFunc
	startMu  sync.Mutex
}

// NewConsumer creates a Consumer. When cfg.RetryBackoff is set, failed
// messages have their visibility extended along the RetryStrategy schedule
// instead of reappearing after the plain visibility timeout.
func NewConsumer(receiver Receiver, handler JobHandler, cfg Config, log zerolog.Logger) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	c := &Consumer{
		receiver: receiver,
		handler:  handler,
		config:   cfg,
		log:      log.With().Str("component", "consumer").Logger(),
	}
	if cfg.RetryBackoff {
		c.retry = NewRetryStrategy(cfg.MaxReceiveCount)
	}
	return c
}

// Start launches the poll loop in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.done != nil {
		return fmt.Errorf("consumer already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)

	c.log.Info().
		Int("batch_size", c.config.BatchSize).
		Int("concurrency", c.config.Concurrency).
		Dur("visibility_timeout", c.config.VisibilityTimeout).
		Msg("consumer started")
	return nil
}

// Stop sets the stop flag and waits for the current iteration to finish.
// If that takes longer than the shutdown timeout, in-flight work is
// cancelled.
func (c *Consumer) Stop(ctx context.Context) error {
	c.startMu.Lock()
	done, cancel := c.done, c.cancel
	c.startMu.Unlock()
	if done == nil {
		return nil
	}

	c.stopping.Store(true)

	timeout := c.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		cancel()
		c.log.Info().Msg("consumer stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case <-timer.C:
		cancel()
		<-done
		c.log.Warn().Msg("consumer shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for !c.stopping.Load() {
		if ctx.Err() != nil {
			return
		}

		_, err := c.Poll(ctx)
		if err == nil {
			bo.Reset()
			continue
		}
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		c.log.Error().Err(err).Dur("retry_in", wait).Msg("receive failed")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll runs one receive-and-process cycle and returns the number of
// messages received. Only receive failures are returned as errors;
// per-message failures leave the message on the queue.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	msgs, err := c.receiver.Receive(ctx, c.config.receiveOptions())
	if err != nil {
		ReceiveErrorsTotal.Inc()
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for _, m := range msgs {
		g.Go(func() error {
			c.processMessage(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	return len(msgs), nil
}

func (c *Consumer) processMessage(ctx context.Context, msg Message) {
	start := time.Now()
	defer func() {
		MessageProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	log := c.log.With().
		Str("message_id", msg.ID).
		Int("receive_count", msg.ReceiveCount).
		Logger()

	var j job.Job
	if err := json.Unmarshal(msg.Body, &j); err != nil {
		MessagesProcessedTotal.WithLabelValues("invalid").Inc()
		log.Error().Err(err).Msg("undecodable message left on queue")
		return
	}
	if errs := job.Validate(&j); len(errs) > 0 {
		MessagesProcessedTotal.WithLabelValues("invalid").Inc()
		log.Error().
			Str("job_id", j.ID).
			Interface("errors", errs).
			Msg("invalid job left on queue")
		return
	}

	pctx := logger.WithCorrelationID(ctx, j.ID)
	if c.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, c.config.ProcessTimeout)
		defer cancel()
	}

	if err := c.handler.HandleJob(pctx, &j, msg.ReceiveCount); err != nil {
		MessagesProcessedTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("job_id", j.ID).Msg("job failed; message left for redelivery")
		c.scheduleRetry(ctx, msg, log)
		return
	}

	if err := c.receiver.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Msg("delete after success failed")
		return
	}
	MessagesProcessedTotal.WithLabelValues("processed").Inc()
}

func (c *Consumer) scheduleRetry(ctx context.Context, msg Message, log zerolog.Logger) {
	if c.retry == nil || !c.retry.ShouldRetry(msg.ReceiveCount) {
		return
	}
	delay := c.retry.NextBackoff(msg.ReceiveCount)
	if err := c.receiver.ChangeVisibility(ctx, msg.ReceiptHandle, delay); err != nil {
		log.Warn().Err(err).Msg("extend visibility failed")
		return
	}
	log.Debug().Dur("retry_in", delay).Msg("retry scheduled")
}
