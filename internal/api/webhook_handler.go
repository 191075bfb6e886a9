package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/metrics"
)

// SignatureHeader carries the provider's HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Hub-Signature-256"

const (
	signaturePrefix     = "sha256="
	maxWebhookBodyBytes = 1 << 20
)

// WebhookConfig holds the values shared with the provider when the callback
// URL is registered.
type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
}

// webhookStatusMap maps provider status values to metric labels.
// Anything else is counted as "other".
var webhookStatusMap = map[string]string{
	"sent":      "sent",
	"delivered": "delivered",
	"read":      "read",
	"failed":    "failed",
	"deleted":   "deleted",
}

// VerifySignature reports whether header is the HMAC-SHA256 of body keyed by
// secret, in the "sha256=<hex>" form. An empty secret never verifies.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignBody returns the signature header value for body. Used by tests and
// local tooling that replays provider callbacks.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// WebhookVerifyHandler handles GET /webhooks/whatsapp.
// Echoes hub.challenge as plain text when hub.mode is "subscribe" and
// hub.verify_token matches the configured token.
func WebhookVerifyHandler(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode := q.Get("hub.mode")
		token := q.Get("hub.verify_token")

		if verifyToken == "" || mode != "subscribe" ||
			!hmac.Equal([]byte(token), []byte(verifyToken)) {
			l := logger.FromContext(r.Context())
			l.Warn().
				Str("mode", mode).
				Msg("webhook verification rejected")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, q.Get("hub.challenge"))
	}
}

// WebhookEventsHandler handles POST /webhooks/whatsapp.
// The signature is checked over the raw body before anything is parsed.
// Verified deliveries are acknowledged with 200 even when the payload cannot
// be understood, so the provider does not retry them.
func WebhookEventsHandler(appSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			log.Warn().Err(err).Msg("webhook: read body failed")
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if !VerifySignature(appSecret, body, r.Header.Get(SignatureHeader)) {
			metrics.WebhookEventsTotal.WithLabelValues("bad_signature").Inc()
			log.Warn().Msg("webhook: signature mismatch")
			respondError(w, http.StatusForbidden, "invalid signature")
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("unparseable").Inc()
			log.Error().Err(err).Msg("webhook: unparseable payload")
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		metrics.WebhookEventsTotal.WithLabelValues("accepted").Inc()
		for _, entry := range payload.Entry {
			for _, change := range entry.Changes {
				for _, st := range change.Value.Statuses {
					metrics.WebhookStatusesTotal.WithLabelValues(normalizeWebhookStatus(st.Status)).Inc()
					var ev *zerolog.Event
					if len(st.Errors) > 0 {
						ev = log.Warn().
							Int("error_code", st.Errors[0].Code).
							Str("error_title", st.Errors[0].Title)
					} else {
						ev = log.Info()
					}
					ev.Str("provider_message_id", st.ID).
						Str("status", st.Status).
						Str("recipient", st.RecipientID).
						Str("timestamp", st.Timestamp).
						Msg("webhook: message status")
				}
				if n := len(change.Value.Messages); n > 0 {
					log.Debug().
						Str("field", change.Field).
						Int("count", n).
						Msg("webhook: inbound messages ignored")
				}
			}
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func normalizeWebhookStatus(status string) string {
	if s, ok := webhookStatusMap[strings.ToLower(status)]; ok {
		return s
	}
	return "other"
}

// WhatsApp Cloud API webhook payload types.

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Statuses         []webhookStatus   `json:"statuses"`
	Messages         []json.RawMessage `json:"messages"`
}

type webhookStatus struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	RecipientID string         `json:"recipient_id"`
	Errors      []webhookError `json:"errors"`
}

type webhookError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}
