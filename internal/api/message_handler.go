package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sungwon/notify-dispatch/internal/auth"
	"github.com/sungwon/notify-dispatch/internal/dispatch"
	"github.com/sungwon/notify-dispatch/internal/intake"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/logger"
)

const maxSubmissionBytes = 1 << 20

// Submitter accepts job submissions. *intake.Service implements it.
type Submitter interface {
	Submit(ctx context.Context, req intake.Request) (*intake.Response, error)
}

// submissionErrorResponse is the 500 envelope. Results is set when inline
// processing aborted after some recipients were already handled.
type submissionErrorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	JobID   string           `json:"jobId,omitempty"`
	Results []job.SendResult `json:"results,omitempty"`
}

// SubmitMessageHandler handles POST /api/v1/messages.
// Returns 202 when the job was queued and 200 when it was processed inline.
func SubmitMessageHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req intake.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
		if err := dec.Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if !auth.TenantAllowed(r.Context(), strings.TrimSpace(req.TenantID)) {
			respondError(w, http.StatusForbidden, "tenant not permitted")
			return
		}

		resp, err := svc.Submit(r.Context(), req)
		if err != nil {
			var verr *intake.ValidationError
			var perr *dispatch.ProcessError
			switch {
			case errors.As(err, &verr):
				respondValidationErrors(w, verr.Fields)
			case errors.Is(err, intake.ErrRateLimited):
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			case errors.As(err, &perr):
				log.Error().Err(err).Str("job_id", perr.JobID).Msg("inline dispatch failed")
				respondJSON(w, http.StatusInternalServerError, submissionErrorResponse{
					Error:   "dispatch_failed",
					Message: perr.Err.Error(),
					JobID:   perr.JobID,
					Results: perr.Results,
				})
			default:
				log.Error().Err(err).Msg("job submission failed")
				respondJSON(w, http.StatusInternalServerError, submissionErrorResponse{
					Error:   "submission_failed",
					Message: "job could not be accepted",
				})
			}
			return
		}

		status := http.StatusOK
		if resp.Status == intake.StatusQueued {
			status = http.StatusAccepted
		}
		respondJSON(w, status, resp)
	}
}
