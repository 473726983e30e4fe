// Package template renders action text such as comment bodies and task subjects
// against the execution context.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/deskflow/pkg/models"
)

// NeedsRendering reports whether text contains template actions.
func NeedsRendering(text string) bool {
	return strings.Contains(text, "{{")
}

// RenderWithContext renders text with the execution context document as data:
// .target, .variables, .results, .trigger, .execution and .workflow.
func RenderWithContext(text string, execCtx *models.ExecutionContext) (string, error) {
	if !NeedsRendering(text) {
		return text, nil
	}

	return Render(text, execCtx.Data())
}

func Render(text string, data any) (string, error) {
	tmpl, err := template.
		New("action").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"default": func(fallback, value any) any {
				if value == nil || value == "" {
					return fallback
				}

				return value
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"join": func(sep string, values []any) string {
				parts := make([]string, 0, len(values))
				for _, value := range values {
					parts = append(parts, fmt.Sprint(value))
				}

				return strings.Join(parts, sep)
			},
		}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", text, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", text, err)
	}

	return buf.String(), nil
}
