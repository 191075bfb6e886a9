package provider

import (
	"errors"
	"time"
)

// ProviderConfig holds configuration for the messaging provider.
type ProviderConfig struct {
	// Type identifies the provider: "whatsapp" or "stdout".
	Type string

	// AccessToken is the bearer credential for the provider API.
	AccessToken string

	// PhoneNumberID is the sender's WhatsApp phone number id.
	PhoneNumberID string

	// APIVersion is the Graph API version path segment, e.g. "v21.0".
	APIVersion string

	// BaseURL overrides the default API URL (useful for testing).
	BaseURL string

	// Timeout is the maximum duration for API calls.
	Timeout time.Duration
}

const (
	defaultTimeout    = 30 * time.Second
	defaultAPIVersion = "v21.0"
)

// Validate checks that required fields are set based on provider type and
// fills defaults.
func (c *ProviderConfig) Validate() error {
	if c.Type == "" {
		return errors.New("provider type is required")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "whatsapp":
		if c.AccessToken == "" {
			return errors.New("whatsapp: access_token is required")
		}
		if c.PhoneNumberID == "" {
			return errors.New("whatsapp: phone_number_id is required")
		}
		if c.APIVersion == "" {
			c.APIVersion = defaultAPIVersion
		}
	case "stdout":
		// No configuration required.
	default:
		return errors.New("unknown provider type: " + c.Type)
	}

	return nil
}
