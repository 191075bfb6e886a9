package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sungwon/notify-dispatch/internal/auth"
	"github.com/sungwon/notify-dispatch/internal/consent"
	"github.com/sungwon/notify-dispatch/internal/queue"
)

// RouterDeps collects what the HTTP surface needs.
// JWT, Consent and DLQ are optional; their routes or middleware are skipped
// when nil.
type RouterDeps struct {
	Submitter Submitter
	Consent   consent.Store
	DLQ       queue.DeadLetterQueue
	JWT       *auth.JWTService
	Webhook   WebhookConfig
	Checks    []ReadinessCheck
	Log       zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(deps.Log))
	r.Use(RecoverMiddleware(deps.Log))
	r.Use(MetricsMiddleware)

	// Health and metrics (no auth required)
	r.Get("/health", HealthzHandler())
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(deps.Checks...))
	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks authenticate by verify token and body signature.
	r.Get("/webhooks/whatsapp", WebhookVerifyHandler(deps.Webhook.VerifyToken))
	r.Post("/webhooks/whatsapp", WebhookEventsHandler(deps.Webhook.AppSecret))

	r.Route("/api/v1", func(r chi.Router) {
		if deps.JWT != nil {
			r.Use(auth.JWTAuth(deps.JWT))
		}

		r.Post("/messages", SubmitMessageHandler(deps.Submitter))

		if deps.Consent != nil {
			r.Put("/consent", UpsertConsentHandler(deps.Consent))
			r.Get("/consent/{tenantId}/{phone}", GetConsentHandler(deps.Consent))
		}

		if deps.DLQ != nil {
			r.Group(func(r chi.Router) {
				if deps.JWT != nil {
					r.Use(auth.RequireRole(auth.RoleAdmin))
				}
				r.Post("/dlq/redrive", DLQRedriveHandler(deps.DLQ))
			})
		}
	})

	return r
}
