// Package ports defines the narrow interfaces between the engine core and
// its external collaborators: text generation, template rendering, and run
// persistence. Adapters live under internal/adapters.
package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Generator is the external text-generation collaborator invoked by
// Generator nodes. Implementations may return plain text or a structured
// value.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, params domain.SamplingParams) (any, error)
}

// TemplateRenderer is the external template-rendering collaborator invoked
// by Template nodes (and for generator prompt interpolation).
type TemplateRenderer interface {
	Render(ctx context.Context, source string, bindings map[string]any) (string, error)
}

// RunStore persists run records for later inspection.
// Load returns domain.ErrRunNotFound for unknown IDs.
type RunStore interface {
	Save(ctx context.Context, record *domain.RunRecord) error
	Load(ctx context.Context, id string) (*domain.RunRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}
