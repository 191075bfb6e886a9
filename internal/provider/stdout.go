package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Stdout implements the Client interface by writing messages to a writer.
// Intended for development and debugging; messages are never actually delivered.
type Stdout struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStdout creates a Stdout provider that prints messages to w.
func NewStdout(w io.Writer) *Stdout {
	return &Stdout{writer: w}
}

func (s *Stdout) Name() string { return "stdout" }

// SendTemplateMessage prints the template call and returns a synthetic id.
func (s *Stdout) SendTemplateMessage(_ context.Context, msg TemplateMessage) (string, error) {
	var b strings.Builder
	b.WriteString("--- stdout provider: template ---\n")
	fmt.Fprintf(&b, "To:       %s\n", msg.To)
	fmt.Fprintf(&b, "Template: %s (%s)\n", msg.TemplateName, msg.Language)
	for i, p := range msg.Parameters {
		fmt.Fprintf(&b, "Param %d:  %s\n", i+1, p.Text)
	}
	b.WriteString("--- end ---\n")
	return s.write(b.String())
}

// SendTextMessage prints the text call and returns a synthetic id.
func (s *Stdout) SendTextMessage(_ context.Context, to, body string) (string, error) {
	var b strings.Builder
	b.WriteString("--- stdout provider: text ---\n")
	fmt.Fprintf(&b, "To:   %s\n", to)
	fmt.Fprintf(&b, "Body: %s\n", body)
	b.WriteString("--- end ---\n")
	return s.write(b.String())
}

func (s *Stdout) write(out string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.writer, out); err != nil {
		return "", fmt.Errorf("stdout: write: %w", err)
	}
	return "stdout-" + uuid.NewString(), nil
}

// HealthCheck always returns nil since stdout is always available.
func (s *Stdout) HealthCheck(_ context.Context) error {
	return nil
}
