package provider

import (
	"testing"
	"time"
)

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr string
	}{
		{
			name:    "empty type returns error",
			config:  ProviderConfig{},
			wantErr: "provider type is required",
		},
		{
			name:    "whatsapp without access token returns error",
			config:  ProviderConfig{Type: "whatsapp", PhoneNumberID: "123"},
			wantErr: "whatsapp: access_token is required",
		},
		{
			name:    "whatsapp without phone number id returns error",
			config:  ProviderConfig{Type: "whatsapp", AccessToken: "tok"},
			wantErr: "whatsapp: phone_number_id is required",
		},
		{
			name:   "whatsapp with credentials succeeds",
			config: ProviderConfig{Type: "whatsapp", AccessToken: "tok", PhoneNumberID: "123"},
		},
		{
			name:   "stdout needs nothing",
			config: ProviderConfig{Type: "stdout"},
		},
		{
			name:    "unknown type returns error",
			config:  ProviderConfig{Type: "sms"},
			wantErr: "unknown provider type: sms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestProviderConfig_Validate_Defaults(t *testing.T) {
	cfg := ProviderConfig{Type: "whatsapp", AccessToken: "tok", PhoneNumberID: "123"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.APIVersion != "v21.0" {
		t.Errorf("APIVersion = %q, want v21.0", cfg.APIVersion)
	}

	cfg = ProviderConfig{Type: "stdout", Timeout: 5 * time.Second}
	_ = cfg.Validate()
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout overwritten: %v", cfg.Timeout)
	}
}
