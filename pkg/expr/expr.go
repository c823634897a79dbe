package expr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/aretw0/arbor/pkg/domain"
)

// Program is a compiled, reusable expression.
type Program struct {
	src  string
	expr hclsyntax.Expression
}

// Compile parses src into a Program. Parsing is the static syntax check:
// a Program that compiles can be evaluated against any context.
func Compile(src string) (*Program, error) {
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "expr", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid expression %q: %s", src, diags.Error())
	}
	return &Program{src: src, expr: parsed}, nil
}

// CheckSyntax reports whether src parses under the sandboxed grammar.
func CheckSyntax(src string) error {
	_, err := Compile(src)
	return err
}

// Source returns the original expression text.
func (p *Program) Source() string {
	return p.src
}

// Eval evaluates the program against the given context and returns the
// result as a native Go value.
func (p *Program) Eval(rctx domain.Context) (any, error) {
	ctxVal, err := contextValue(rctx)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", p.src, err)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"ctx": ctxVal},
		Functions: baseFunctions,
	}

	v, diags := p.expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expression %q: %s", p.src, diags.Error())
	}
	return fromCty(v)
}

// EvalBool evaluates the program and requires a boolean result.
// Used for transition conditions.
func (p *Program) EvalBool(rctx domain.Context) (bool, error) {
	v, err := p.Eval(rctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q: expected boolean result, got %T", p.src, v)
	}
	return b, nil
}

// contextValue exposes the execution context as a single cty object.
func contextValue(rctx domain.Context) (cty.Value, error) {
	if len(rctx) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(rctx))
	for k, v := range rctx {
		cv, err := toCty(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("context key %q: %w", k, err)
		}
		attrs[k] = cv
	}
	return cty.ObjectVal(attrs), nil
}
