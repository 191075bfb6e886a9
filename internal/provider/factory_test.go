package provider

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// mockHTTPClient implements HTTPClient, recording requests and replaying a
// canned response.
type mockHTTPClient struct {
	requests []*HTTPRequest
	resp     *HTTPResponse
	err      error
}

func (m *mockHTTPClient) Do(_ context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &HTTPResponse{StatusCode: 200, Body: []byte(`{"messages":[{"id":"wamid.default"}]}`)}, nil
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ProviderConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "whatsapp",
			cfg:      ProviderConfig{Type: "whatsapp", AccessToken: "tok", PhoneNumberID: "123"},
			wantName: "whatsapp",
		},
		{
			name:     "stdout",
			cfg:      ProviderConfig{Type: "stdout"},
			wantName: "stdout",
		},
		{
			name:    "invalid whatsapp config",
			cfg:     ProviderConfig{Type: "whatsapp"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     ProviderConfig{Type: "carrier-pigeon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, &mockHTTPClient{}, zerolog.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestNewClient_DefaultHTTPClient(t *testing.T) {
	c, err := NewClient(ProviderConfig{Type: "whatsapp", AccessToken: "tok", PhoneNumberID: "123"}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	wa, ok := c.(*WhatsApp)
	if !ok {
		t.Fatalf("NewClient() returned %T, want *WhatsApp", c)
	}
	if _, ok := wa.client.(*DefaultHTTPClient); !ok {
		t.Errorf("http client = %T, want *DefaultHTTPClient", wa.client)
	}
}
