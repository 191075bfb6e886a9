package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sungwon/notify-dispatch/internal/templates"
)

const whatsappDefaultBaseURL = "https://graph.facebook.com"

// WhatsApp implements Client for the WhatsApp Business Cloud API.
type WhatsApp struct {
	accessToken   string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	client        HTTPClient
}

// NewWhatsApp creates a WhatsApp provider from the given configuration.
func NewWhatsApp(cfg ProviderConfig, client HTTPClient) *WhatsApp {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = whatsappDefaultBaseURL
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &WhatsApp{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		apiVersion:    apiVersion,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        client,
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

func (w *WhatsApp) messagesURL() string {
	return w.baseURL + "/" + w.apiVersion + "/" + w.phoneNumberID + "/messages"
}

// SendTemplateMessage sends a pre-approved template message.
func (w *WhatsApp) SendTemplateMessage(ctx context.Context, msg TemplateMessage) (string, error) {
	return w.send(ctx, w.buildTemplatePayload(msg))
}

// SendTextMessage sends a free-form text message.
func (w *WhatsApp) SendTextMessage(ctx context.Context, to, body string) (string, error) {
	return w.send(ctx, whatsappPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &whatsappText{Body: body},
	})
}

func (w *WhatsApp) send(ctx context.Context, payload whatsappPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	resp, err := w.client.Do(ctx, &HTTPRequest{
		Method: "POST",
		URL:    w.messagesURL(),
		Headers: map[string]string{
			"Authorization": "Bearer " + w.accessToken,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp: send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ClassifyHTTPError("whatsapp", resp.StatusCode, string(resp.Body))
	}

	var out whatsappResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp: response carried no message id")
	}
	return out.Messages[0].ID, nil
}

// HealthCheck verifies the phone number id resolves with the configured token.
func (w *WhatsApp) HealthCheck(ctx context.Context) error {
	resp, err := w.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    w.baseURL + "/" + w.apiVersion + "/" + w.phoneNumberID,
		Headers: map[string]string{
			"Authorization": "Bearer " + w.accessToken,
		},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: health check request: %w", err)
	}

	if resp.StatusCode != 200 {
		return fmt.Errorf("whatsapp: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// whatsappPayload matches the Cloud API /messages JSON schema.
type whatsappPayload struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type,omitempty"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Template         *whatsappTemplate `json:"template,omitempty"`
	Text             *whatsappText     `json:"text,omitempty"`
}

type whatsappTemplate struct {
	Name       string              `json:"name"`
	Language   whatsappLanguage    `json:"language"`
	Components []whatsappComponent `json:"components,omitempty"`
}

type whatsappLanguage struct {
	Code string `json:"code"`
}

type whatsappComponent struct {
	Type       string                `json:"type"`
	Parameters []templates.Parameter `json:"parameters"`
}

type whatsappText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsappResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (w *WhatsApp) buildTemplatePayload(msg TemplateMessage) whatsappPayload {
	tmpl := &whatsappTemplate{
		Name:     msg.TemplateName,
		Language: whatsappLanguage{Code: msg.Language},
	}
	// Templates without placeholders must omit the body component.
	if len(msg.Parameters) > 0 {
		tmpl.Components = []whatsappComponent{
			{Type: "body", Parameters: msg.Parameters},
		}
	}

	return whatsappPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.To,
		Type:             "template",
		Template:         tmpl,
	}
}
