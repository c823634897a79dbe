// Package texttemplate implements ports.TemplateRenderer on Go's standard
// text/template engine.
package texttemplate

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Renderer renders template sources with the node's resolved inputs as
// data. Templates address bindings as {{.name}}.
type Renderer struct{}

// New creates a renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render implements ports.TemplateRenderer.
func (r *Renderer) Render(_ context.Context, source string, bindings map[string]any) (string, error) {
	tmpl, err := template.New("node").Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, bindings); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return sb.String(), nil
}
