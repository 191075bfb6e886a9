package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/queue"
)

const maxRedriveIDs = 100

// dlqRedriveRequest is the JSON body for POST /api/v1/dlq/redrive.
type dlqRedriveRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// dlqRedriveResponse is the JSON response for a DLQ redrive operation.
type dlqRedriveResponse struct {
	Redriven int `json:"redriven"`
	Total    int `json:"total"`
}

// DLQRedriveHandler handles POST /api/v1/dlq/redrive.
// It moves dead-lettered jobs back onto the primary queue.
func DLQRedriveHandler(dlq queue.DeadLetterQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dlqRedriveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if len(req.MessageIDs) == 0 {
			respondError(w, http.StatusBadRequest, "message_ids is required and must not be empty")
			return
		}
		if len(req.MessageIDs) > maxRedriveIDs {
			respondError(w, http.StatusBadRequest, "too many message_ids")
			return
		}

		redriven, err := dlq.Redrive(r.Context(), req.MessageIDs)
		if err != nil {
			if errors.Is(err, queue.ErrRedriveUnavailable) {
				respondError(w, http.StatusNotImplemented, "redrive not supported by this queue")
				return
			}
			log.Error().Err(err).
				Int("requested", len(req.MessageIDs)).
				Int("redriven", redriven).
				Msg("dlq redrive failed")
			respondError(w, http.StatusInternalServerError, "redrive failed")
			return
		}

		log.Info().
			Int("redriven", redriven).
			Int("total", len(req.MessageIDs)).
			Msg("dlq redrive completed")

		respondJSON(w, http.StatusOK, dlqRedriveResponse{
			Redriven: redriven,
			Total:    len(req.MessageIDs),
		})
	}
}
