package runtime

import (
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Resolver materializes a node's declared parameters from the execution
// context. It caches compiled expressions so each source string is parsed
// once per engine, not once per evaluation.
type Resolver struct {
	mu    sync.Mutex
	progs map[string]*expr.Program
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		progs: make(map[string]*expr.Program),
	}
}

// Resolve evaluates every input source against the context.
// Source precedence per parameter: literal, expression, context key.
func (r *Resolver) Resolve(node *domain.Node, rctx domain.Context) (map[string]any, error) {
	if len(node.Inputs) == 0 {
		return map[string]any{}, nil
	}

	resolved := make(map[string]any, len(node.Inputs))
	for param, src := range node.Inputs {
		value, err := r.resolveOne(src, rctx)
		if err != nil {
			return nil, fmt.Errorf("node %q: input %q: %w", node.ID, param, err)
		}
		resolved[param] = value
	}
	return resolved, nil
}

func (r *Resolver) resolveOne(src domain.InputSource, rctx domain.Context) (any, error) {
	switch {
	case src.HasValue:
		return src.Value, nil
	case src.Expr != "":
		prog, err := r.program(src.Expr)
		if err != nil {
			return nil, err
		}
		return prog.Eval(rctx)
	case src.Key != "":
		if v, ok := rctx[src.Key]; ok {
			return v, nil
		}
		if src.HasDefault {
			return src.Default, nil
		}
		return nil, fmt.Errorf("context key %q is absent and no default is declared", src.Key)
	default:
		return nil, fmt.Errorf("input source is empty")
	}
}

// EvalCondition evaluates a transition condition against the context.
func (r *Resolver) EvalCondition(condition string, rctx domain.Context) (bool, error) {
	prog, err := r.program(condition)
	if err != nil {
		return false, err
	}
	return prog.EvalBool(rctx)
}

func (r *Resolver) program(src string) (*expr.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prog, ok := r.progs[src]; ok {
		return prog, nil
	}
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	r.progs[src] = prog
	return prog, nil
}
