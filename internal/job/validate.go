package job

import (
	"fmt"
	"regexp"
	"strings"
)

// phonePattern matches the E.164 form produced by NormalizePhone.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// FieldError describes one invalid field of a job.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone returns the canonical form used for consent keys and provider
// addresses: separators removed and exactly one leading plus, so
// "919876543210" and "+91 98765-43210" compare equal.
func NormalizePhone(phone string) string {
	p := phoneSeparators.Replace(strings.TrimSpace(phone))
	if p == "" {
		return ""
	}
	return "+" + strings.TrimPrefix(p, "+")
}

// NormalizeRecipients rewrites every recipient phone to its canonical form.
func (j *Job) NormalizeRecipients() {
	recipients := make([]Recipient, len(j.Recipients))
	for i, r := range j.Recipients {
		r.Phone = NormalizePhone(r.Phone)
		recipients[i] = r
	}
	j.Recipients = recipients
}

// ValidPhone reports whether phone is minimally well-formed.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// Validate checks the shape of a job. The same check runs at intake and again
// when the consumer decodes a job from the queue. A nil result means valid.
func Validate(j *Job) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(j.TenantID) == "" {
		errs = append(errs, FieldError{Field: "tenantId", Message: "is required"})
	}
	if !j.Type.Valid() {
		errs = append(errs, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("must be one of transactional, bulk, otp, session_text; got %q", j.Type),
		})
	}
	if strings.TrimSpace(j.TemplateName) == "" {
		errs = append(errs, FieldError{Field: "templateName", Message: "is required"})
	}
	if j.Priority != "" && !j.Priority.Valid() {
		errs = append(errs, FieldError{
			Field:   "priority",
			Message: fmt.Sprintf("must be one of high, normal, low; got %q", j.Priority),
		})
	}

	if len(j.Recipients) == 0 {
		errs = append(errs, FieldError{Field: "recipients", Message: "must contain at least one recipient"})
	}
	for i, r := range j.Recipients {
		if !ValidPhone(r.Phone) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("recipients[%d].phone", i),
				Message: fmt.Sprintf("invalid phone number %q", r.Phone),
			})
		}
	}

	return errs
}
