package templates

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"none", "Hello there", []string{}},
		{"ordered", "{{student}} was absent on {{ date }}", []string{"student", "date"}},
		{"duplicates keep first position", "{{a}} {{b}} {{a}} {{c}}", []string{"a", "b", "c"}},
		{"dotted and dashed names", "{{ guardian.name }} {{fee-amount}}", []string{"guardian.name", "fee-amount"}},
		{"malformed ignored", "{{ }} {{bad name}} {{ok}}", []string{"ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPlaceholders(tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractPlaceholders() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubstitute(t *testing.T) {
	payload := map[string]any{
		"student": "Ana",
		"amount":  float64(1200),
		"rate":    2.5,
		"paid":    false,
		"items":   []any{"book", "pen"},
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"string", "Hi {{ student }}", "Hi Ana"},
		{"integral float", "Due {{amount}}", "Due 1200"},
		{"fraction", "Rate {{rate}}", "Rate 2.5"},
		{"bool", "Paid: {{paid}}", "Paid: false"},
		{"json fallback", "Items {{items}}", `Items ["book","pen"]`},
		{"missing key", "Hi {{ nobody }}!", "Hi !"},
		{"repeated", "{{student}}/{{student}}", "Ana/Ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.src, payload); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubstitute_ValuesAreNotRescanned(t *testing.T) {
	payload := map[string]any{"a": "{{b}}", "b": "leak"}

	got := RenderSource("x {{a}} y", payload)
	if got.Text != "x {{b}} y" {
		t.Errorf("Text = %q, want %q", got.Text, "x {{b}} y")
	}
	if len(got.Parameters) != 1 || got.Parameters[0].Text != "{{b}}" {
		t.Errorf("Parameters = %+v, want single {{b}} parameter", got.Parameters)
	}
}

func TestRenderer_Render(t *testing.T) {
	src := MapSource{
		"en": {"attendance_alert": "Dear parent, {{student}} was absent on {{date}}. {{student}} must bring a note."},
	}
	r := NewRenderer(src)

	got, err := r.Render(context.Background(), "attendance_alert", map[string]any{
		"student": "Ana",
		"date":    "2026-03-01",
	}, "en")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantText := "Dear parent, Ana was absent on 2026-03-01. Ana must bring a note."
	if got.Text != wantText {
		t.Errorf("Text = %q, want %q", got.Text, wantText)
	}
	wantParams := []Parameter{{Type: "text", Text: "Ana"}, {Type: "text", Text: "2026-03-01"}}
	if !reflect.DeepEqual(got.Parameters, wantParams) {
		t.Errorf("Parameters = %+v, want %+v", got.Parameters, wantParams)
	}
	if !reflect.DeepEqual(got.ParameterTexts(), []string{"Ana", "2026-03-01"}) {
		t.Errorf("ParameterTexts() = %v", got.ParameterTexts())
	}
}

func TestRenderer_RenderMissingPayloadKeys(t *testing.T) {
	r := NewRenderer(MapSource{"en": {"t": "{{a}}-{{b}}"}})

	got, err := r.Render(context.Background(), "t", nil, "en")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got.Text != "-" {
		t.Errorf("Text = %q, want %q", got.Text, "-")
	}
	for i, p := range got.Parameters {
		if p.Text != "" {
			t.Errorf("Parameters[%d].Text = %q, want empty", i, p.Text)
		}
	}
}

func TestRenderer_RenderNotFound(t *testing.T) {
	r := NewRenderer(MapSource{"en": {"t": "x"}})

	_, err := r.Render(context.Background(), "t", nil, "hi")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("Render error = %v, want ErrTemplateNotFound", err)
	}
}

func TestRenderer_Concurrent(t *testing.T) {
	r := NewRenderer(MapSource{"en": {"t": "Hello {{name}}"}})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Render(context.Background(), "t", map[string]any{"name": "x"}, "en")
			if err != nil || got.Text != "Hello x" {
				t.Errorf("Render = %q, %v", got.Text, err)
			}
		}()
	}
	wg.Wait()
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{true, "true"},
		{42, "42"},
		{int64(-7), "-7"},
		{float64(3), "3"},
		{0.125, "0.125"},
		{1e20, "100000000000000000000"},
		{map[string]any{"k": 1}, `{"k":1}`},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
