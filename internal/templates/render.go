// Package templates renders named message templates against a job payload.
//
// Rendering is two pure passes over the raw template source: the placeholder
// names are extracted first, then every placeholder is substituted. The
// extracted names drive the ordered parameter list sent to the provider, so a
// substituted value can never be mistaken for a placeholder.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// placeholderPattern matches {{ name }} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Parameter is one positional template parameter as the provider expects it.
type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Rendered is the result of rendering one template.
type Rendered struct {
	Text       string      `json:"text"`
	Parameters []Parameter `json:"parameters"`
}

// ParameterTexts returns the parameter values in order.
func (r Rendered) ParameterTexts() []string {
	out := make([]string, len(r.Parameters))
	for i, p := range r.Parameters {
		out[i] = p.Text
	}
	return out
}

// Renderer loads template sources and renders them. It holds no mutable state
// of its own and is safe for concurrent use when its Source is.
type Renderer struct {
	source Source
}

// NewRenderer creates a Renderer backed by source.
func NewRenderer(source Source) *Renderer {
	return &Renderer{source: source}
}

// Render loads templateName in language and renders it against payload.
// Missing payload keys render as empty strings.
func (r *Renderer) Render(ctx context.Context, templateName string, payload map[string]any, language string) (Rendered, error) {
	src, err := r.source.Load(ctx, templateName, language)
	if err != nil {
		return Rendered{}, fmt.Errorf("templates: load %s/%s: %w", language, templateName, err)
	}
	return RenderSource(src, payload), nil
}

// RenderSource renders an already loaded template source.
func RenderSource(src string, payload map[string]any) Rendered {
	names := ExtractPlaceholders(src)
	params := make([]Parameter, len(names))
	for i, name := range names {
		params[i] = Parameter{Type: "text", Text: Stringify(payload[name])}
	}
	return Rendered{
		Text:       Substitute(src, payload),
		Parameters: params,
	}
}

// ExtractPlaceholders returns the unique placeholder names of src in order of
// first occurrence.
func ExtractPlaceholders(src string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(src, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Substitute replaces every placeholder in src with its payload value in a
// single pass. Substituted text is never rescanned.
func Substitute(src string, payload map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(src, func(tok string) string {
		m := placeholderPattern.FindStringSubmatch(tok)
		return Stringify(payload[m[1]])
	})
}

// Stringify converts a payload value to its template text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// formatFloat renders integral values without a fraction or exponent, which is
// how JSON numbers decoded into float64 usually need to appear.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
