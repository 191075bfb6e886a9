package provider

import (
	"context"

	"github.com/sungwon/notify-dispatch/internal/templates"
)

// Client sends messages through the messaging provider. Every call addresses
// exactly one recipient; clients never batch and never retry.
type Client interface {
	// SendTemplateMessage sends a pre-approved template with ordered
	// parameters and returns the provider's message id.
	SendTemplateMessage(ctx context.Context, msg TemplateMessage) (string, error)
	// SendTextMessage sends free-form text inside an open session window.
	SendTextMessage(ctx context.Context, to, body string) (string, error)
	// Name returns the provider's identifier (e.g., "whatsapp", "stdout").
	Name() string
	// HealthCheck verifies the provider is reachable and the credentials work.
	HealthCheck(ctx context.Context) error
}

// TemplateMessage is a single template send.
type TemplateMessage struct {
	To           string
	TemplateName string
	Language     string
	Parameters   []templates.Parameter
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a provider API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
