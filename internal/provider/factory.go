package provider

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// NewClient creates the single configured provider client. There is no
// routing or failover between providers.
func NewClient(cfg ProviderConfig, client HTTPClient, log zerolog.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}

	switch cfg.Type {
	case "whatsapp":
		log.Info().
			Str("phone_number_id", cfg.PhoneNumberID).
			Str("api_version", cfg.APIVersion).
			Msg("using whatsapp cloud api provider")
		return NewWhatsApp(cfg, client), nil
	case "stdout":
		log.Warn().Msg("using stdout provider; messages will not be delivered")
		return NewStdout(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}
