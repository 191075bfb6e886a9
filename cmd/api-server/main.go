package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/notify-dispatch/internal/api"
	"github.com/sungwon/notify-dispatch/internal/auth"
	"github.com/sungwon/notify-dispatch/internal/bootstrap"
	"github.com/sungwon/notify-dispatch/internal/config"
	"github.com/sungwon/notify-dispatch/internal/intake"
	"github.com/sungwon/notify-dispatch/internal/queue"
	"github.com/sungwon/notify-dispatch/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := bootstrap.NewLogger(cfg.Logging, "api-server")
	log.Info().Str("mode", cfg.Queue.Mode).Msg("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize components")
	}
	defer comps.Close()

	comps.Health.Start()
	defer comps.Health.Stop()

	// Select how accepted jobs reach the dispatcher.
	var (
		submitter intake.JobSubmitter
		dlq       queue.DeadLetterQueue
		consumer  *queue.Consumer
	)
	switch cfg.Queue.Mode {
	case queue.ModeQueued:
		q, err := queue.NewQueue(ctx, cfg.Queue, "api-server", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create queue")
		}
		defer bootstrap.CloseQueue(q, log)

		submitter = intake.NewQueuedSubmitter(q, log)
		dlq = q

		// A memory queue only exists inside this process, so it is drained here.
		if cfg.Queue.Type == "memory" {
			consumer = queue.NewConsumer(q, worker.NewHandler(comps.Dispatch, log), cfg.Queue, log)
			if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
				log.Fatal().Err(err).Msg("failed to start embedded consumer")
			}
			log.Info().Msg("embedded queue consumer started")
		}
	default:
		submitter = intake.NewInlineSubmitter(comps.Dispatch, log)
	}

	var limiter *intake.TenantLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = intake.NewTenantLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	intakeSvc := intake.NewService(submitter, limiter, cfg.Templates.DefaultLanguage, log)

	var jwtService *auth.JWTService
	if cfg.Auth.Enabled {
		jwtService = auth.NewJWTService(cfg.Auth)
	} else {
		log.Warn().Msg("API authentication is disabled; set NOTIFY_DISPATCH_AUTH_ENABLED in production")
	}
	if cfg.Webhook.AppSecret == "" {
		log.Warn().Msg("webhook app secret is not set; all webhook events will be rejected")
	}

	router := api.NewRouter(api.RouterDeps{
		Submitter: intakeSvc,
		Consent:   comps.Consent,
		DLQ:       dlq,
		JWT:       jwtService,
		Webhook: api.WebhookConfig{
			VerifyToken: cfg.Webhook.VerifyToken,
			AppSecret:   cfg.Webhook.AppSecret,
		},
		Checks: comps.ReadinessChecks(),
		Log:    log,
	})

	// Configure HTTP server
	srv := &http.Server{
		Addr:         cfg.API.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("embedded consumer did not stop cleanly")
		}
	}

	log.Info().Msg("server stopped")
}
