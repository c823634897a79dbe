package runtime

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// WithRunID returns a context carrying an externally assigned run ID. The
// engine uses it for every event of the run (sub-workflow runs included),
// so callers can correlate events with their own run records.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
