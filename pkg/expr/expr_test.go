package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

func eval(t *testing.T, src string, rctx domain.Context) any {
	t.Helper()
	prog, err := expr.Compile(src)
	require.NoError(t, err)
	v, err := prog.Eval(rctx)
	require.NoError(t, err)
	return v
}

func TestEval_Comparisons(t *testing.T) {
	rctx := domain.Context{
		"completed_chapters": 2,
		"num_chapters":       3,
		"file_type":          "csv",
	}

	tests := []struct {
		src  string
		want any
	}{
		{"ctx.completed_chapters >= ctx.num_chapters", false},
		{"ctx.completed_chapters < ctx.num_chapters", true},
		{`ctx.file_type == "csv"`, true},
		{`ctx.file_type != "json"`, true},
		{"ctx.completed_chapters + 1", 3},
		{"ctx.num_chapters * 2", 6},
		{`ctx.completed_chapters > 1 && ctx.file_type == "csv"`, true},
		{`ctx.completed_chapters > 5 || ctx.file_type == "csv"`, true},
		{"!(ctx.completed_chapters == 2)", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src, rctx))
		})
	}
}

func TestEval_Functions(t *testing.T) {
	rctx := domain.Context{
		"title": "  Gardening  ",
		"tags":  []string{"soil", "seeds"},
		"count": -4,
	}

	tests := []struct {
		src  string
		want any
	}{
		{"len(ctx.tags)", 2},
		{`upper("go")`, "GO"},
		{"lower(trim(ctx.title))", "gardening"},
		{"abs(ctx.count)", 4},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{`contains(ctx.tags, "soil")`, true},
		{`contains(ctx.tags, "water")`, false},
		{`has(ctx, "title")`, true},
		{`has(ctx, "missing")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src, rctx))
		})
	}
}

func TestEval_NestedValues(t *testing.T) {
	rctx := domain.Context{
		"book": map[string]any{
			"title":    "Roots",
			"chapters": []any{"one", "two"},
		},
	}

	assert.Equal(t, "Roots", eval(t, "ctx.book.title", rctx))
	assert.Equal(t, 2, eval(t, "len(ctx.book.chapters)", rctx))
}

func TestEvalBool_RejectsNonBool(t *testing.T) {
	prog, err := expr.Compile("ctx.count + 1")
	require.NoError(t, err)

	_, err = prog.EvalBool(domain.Context{"count": 1})
	assert.ErrorContains(t, err, "expected boolean result")
}

func TestEval_MissingKeyFails(t *testing.T) {
	prog, err := expr.Compile("ctx.absent > 1")
	require.NoError(t, err)

	_, err = prog.Eval(domain.Context{"present": 1})
	assert.Error(t, err)
}

func TestCheckSyntax(t *testing.T) {
	assert.NoError(t, expr.CheckSyntax("ctx.a == 1"))
	assert.NoError(t, expr.CheckSyntax(`contains(ctx.tags, "x")`))

	assert.Error(t, expr.CheckSyntax(""))
	assert.Error(t, expr.CheckSyntax("ctx.a =="))
	assert.Error(t, expr.CheckSyntax("((ctx.a)"))
}

func TestEval_FloatNumbers(t *testing.T) {
	rctx := domain.Context{"ratio": 2.5}

	assert.Equal(t, 2, eval(t, "floor(ctx.ratio)", rctx))
	assert.Equal(t, 3, eval(t, "ceil(ctx.ratio)", rctx))

	// Whole-valued results come back as int even from float operands.
	assert.Equal(t, 5, eval(t, "ctx.ratio * 2", rctx))
	assert.Equal(t, 1.25, eval(t, "ctx.ratio / 2", rctx))
}
