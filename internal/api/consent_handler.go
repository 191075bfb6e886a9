package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sungwon/notify-dispatch/internal/auth"
	"github.com/sungwon/notify-dispatch/internal/consent"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
)

// upsertConsentRequest is the JSON body for PUT /api/v1/consent.
type upsertConsentRequest struct {
	TenantID string `json:"tenantId"`
	Phone    string `json:"phone"`
	Consent  *bool  `json:"consent"`
	Disabled bool   `json:"disabled"`
}

func (r upsertConsentRequest) validate() []job.FieldError {
	var errs []job.FieldError
	if strings.TrimSpace(r.TenantID) == "" {
		errs = append(errs, job.FieldError{Field: "tenantId", Message: "is required"})
	}
	if !job.ValidPhone(r.Phone) {
		errs = append(errs, job.FieldError{Field: "phone", Message: "must be a valid phone number"})
	}
	if r.Consent == nil {
		errs = append(errs, job.FieldError{Field: "consent", Message: "is required"})
	}
	return errs
}

// UpsertConsentHandler handles PUT /api/v1/consent.
func UpsertConsentHandler(store consent.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req upsertConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if errs := req.validate(); len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		tenantID := strings.TrimSpace(req.TenantID)
		if !auth.TenantAllowed(r.Context(), tenantID) {
			respondError(w, http.StatusForbidden, "tenant not permitted")
			return
		}

		saved, err := store.UpsertRecipient(r.Context(), consent.Record{
			TenantID: tenantID,
			Phone:    req.Phone,
			Consent:  *req.Consent,
			Disabled: req.Disabled,
		})
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID).Msg("upsert consent failed")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		log.Info().
			Str("tenant_id", saved.TenantID).
			Bool("consent", saved.Consent).
			Bool("disabled", saved.Disabled).
			Msg("consent record updated")
		respondJSON(w, http.StatusOK, saved)
	}
}

// GetConsentHandler handles GET /api/v1/consent/{tenantId}/{phone}.
// Returns 404 when no record exists; that recipient is allowed by default.
func GetConsentHandler(store consent.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantId")
		phone := chi.URLParam(r, "phone")

		if !job.ValidPhone(phone) {
			respondError(w, http.StatusBadRequest, "invalid phone")
			return
		}
		if !auth.TenantAllowed(r.Context(), tenantID) {
			respondError(w, http.StatusForbidden, "tenant not permitted")
			return
		}

		rec, err := store.LoadRecipient(r.Context(), tenantID, phone)
		if err != nil {
			l := logger.FromContext(r.Context())
			l.Error().Err(err).Str("tenant_id", tenantID).Msg("load consent failed")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if rec == nil {
			respondError(w, http.StatusNotFound, "consent record not found")
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}
