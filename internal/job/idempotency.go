package job

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// IdempotencyKey derives a key from the payload, job id and timestamp. Because
// the job id and timestamp are fresh per submission, generated keys only
// deduplicate byte-identical re-enqueues of the same job; callers that need
// idempotent resubmission must supply their own key.
func IdempotencyKey(payload map[string]any, jobID string, ts time.Time) string {
	// encoding/json sorts map keys, which keeps the digest deterministic.
	data, err := json.Marshal(struct {
		Payload   map[string]any `json:"payload"`
		JobID     string         `json:"jobId"`
		Timestamp string         `json:"timestamp"`
	}{
		Payload:   payload,
		JobID:     jobID,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		// Unencodable payload values; fall back to the identity fields.
		data = []byte(jobID + "|" + ts.UTC().Format(time.RFC3339Nano))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
