// Package consent answers whether a recipient may be messaged.
//
// The policy is default-allow: a recipient with no record may be messaged. A
// record suppresses messaging when consent is false or the recipient is
// disabled. Lookup failures are errors, never an implicit allow.
package consent

import (
	"context"
	"time"

	"github.com/sungwon/notify-dispatch/internal/job"
)

// Record is the consent state of one recipient within one tenant.
type Record struct {
	TenantID  string    `json:"tenantId"`
	Phone     string    `json:"phone"`
	Consent   bool      `json:"consent"`
	Disabled  bool      `json:"disabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Suppressed reports whether the record forbids messaging the recipient.
func (r *Record) Suppressed() bool {
	return !r.Consent || r.Disabled
}

// Store reads and writes consent records.
type Store interface {
	// LoadRecipient returns the record for phone in tenantID, or nil if none
	// exists.
	LoadRecipient(ctx context.Context, tenantID, phone string) (*Record, error)
	UpsertRecipient(ctx context.Context, rec Record) (*Record, error)
}

// Allowed applies the default-allow policy to a lookup result.
func Allowed(rec *Record) bool {
	return rec == nil || !rec.Suppressed()
}

// normalizePhone keys every backend the same way regardless of how the number
// was typed.
func normalizePhone(phone string) string {
	return job.NormalizePhone(phone)
}
