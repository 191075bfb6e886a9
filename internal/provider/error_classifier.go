package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ProviderError wraps a provider API error with classification metadata.
type ProviderError struct {
	// Provider is the name of the provider that returned the error.
	Provider string
	// StatusCode is the HTTP status code from the provider API.
	StatusCode int
	// Code is the provider's own error code, when the response carried one.
	Code int
	// Message is the error description from the provider API.
	Message string
	// Body is the raw diagnostic payload returned by the provider.
	Body string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d code %d: %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsPermanent returns true if the error is a permanent failure that will not
// succeed on redelivery.
func IsPermanent(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Permanent
	}
	return false
}

// IsTransient returns true if the error is a temporary failure that may
// succeed on retry.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return !pe.Permanent
	}
	// Unknown errors are treated as transient to avoid data loss.
	return true
}

// graphError is the error envelope returned by the WhatsApp Cloud API.
type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		ErrorData    struct {
			Details string `json:"details"`
		} `json:"error_data"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// Cloud API error codes that are throttling signals regardless of the HTTP
// status they arrive with.
var throttlingCodes = map[int]bool{
	4:      true, // application request limit
	80007:  true, // account rate limit
	130429: true, // throughput reached
	131048: true, // spam rate limit
	131056: true, // pair rate limit
}

// ClassifyHTTPError creates a ProviderError from an HTTP status code and
// response body, classifying it as permanent or transient.
func ClassifyHTTPError(providerName string, statusCode int, body string) *ProviderError {
	pe := &ProviderError{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    body,
		Body:       body,
	}

	var ge graphError
	if err := json.Unmarshal([]byte(body), &ge); err == nil && (ge.Error.Code != 0 || ge.Error.Message != "") {
		pe.Code = ge.Error.Code
		pe.Message = ge.Error.Message
		if ge.Error.ErrorData.Details != "" {
			pe.Message += " (" + ge.Error.ErrorData.Details + ")"
		}
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		// Not an error.
		return nil

	case throttlingCodes[pe.Code]:
		pe.Permanent = false

	case statusCode == 400:
		pe.Permanent = pe.Code != 0 || containsPermanentIndicator(body)

	case statusCode == 401, statusCode == 403, statusCode == 404:
		// Expired tokens and missing phone-number ids need operator action.
		pe.Permanent = true

	case statusCode == 429:
		// Rate limited - always transient.
		pe.Permanent = false

	case statusCode >= 500:
		pe.Permanent = containsPermanentServerIndicator(body)

	default:
		// Other 4xx codes are treated as permanent.
		pe.Permanent = statusCode >= 400 && statusCode < 500
	}

	return pe
}

// containsPermanentIndicator checks if a 400 response body indicates a
// permanent failure (e.g., invalid recipient, unknown template).
func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid recipient",
		"invalid phone",
		"not a valid whatsapp user",
		"template name does not exist",
		"number of parameters does not match",
		"invalid parameter",
		"bad request",
		"validation error",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// containsPermanentServerIndicator checks if a 5xx response body indicates
// a permanent server-side failure (e.g., invalid auth configuration).
func containsPermanentServerIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid oauth access token",
		"authentication failed",
		"account suspended",
		"account disabled",
		"unauthorized",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
