package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sungwon/notify-dispatch/internal/logger"
)

const readinessTimeout = 5 * time.Second

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthzHandler handles GET /health and GET /healthz.
// Always returns 200 OK with {"status":"ok"}.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz.
// Runs every check and returns 200 if all pass, 503 with Retry-After otherwise.
func ReadyzHandler(checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				l := logger.FromContext(r.Context())
				l.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
				results[c.Name] = "unavailable"
				ready = false
				continue
			}
			results[c.Name] = "ok"
		}

		if !ready {
			w.Header().Set("Retry-After", "30")
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"checks": results,
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"checks": results,
		})
	}
}
