package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sungwon/notify-dispatch/internal/api"
	"github.com/sungwon/notify-dispatch/internal/bootstrap"
	"github.com/sungwon/notify-dispatch/internal/config"
	"github.com/sungwon/notify-dispatch/internal/queue"
	"github.com/sungwon/notify-dispatch/internal/worker"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := bootstrap.NewLogger(cfg.Logging, "queue-worker")
	log.Info().Str("queue_type", cfg.Queue.Type).Msg("starting queue worker")

	if cfg.Queue.Type == "memory" {
		log.Fatal().Msg("queue-worker needs a shared queue; set queue.type to redis or sqs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize components")
	}
	defer comps.Close()

	comps.Health.Start()
	defer comps.Health.Stop()

	hostname, _ := os.Hostname()
	q, err := queue.NewQueue(ctx, cfg.Queue, hostname, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue")
	}
	defer bootstrap.CloseQueue(q, log)

	handler := worker.NewHandler(comps.Dispatch, log)
	consumer := queue.NewConsumer(q, handler, cfg.Queue, log)

	// The poll loop gets its own context so a signal only sets the stop flag;
	// Stop decides when in-flight work is cancelled.
	if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().
		Int("batch_size", cfg.Queue.BatchSize).
		Int("concurrency", cfg.Queue.Concurrency).
		Msg("queue worker started")

	// Health and metrics for the worker process.
	r := chi.NewRouter()
	r.Get("/health", api.HealthzHandler())
	r.Get("/readyz", api.ReadyzHandler(comps.ReadinessChecks()...))
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("worker health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal for graceful shutdown.
	<-ctx.Done()
	log.Info().Msg("shutting down queue worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("consumer did not stop cleanly")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("queue worker stopped")
}
