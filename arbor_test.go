package arbor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// scriptedGenerator returns canned completions keyed by a marker found in
// the user prompt.
type scriptedGenerator struct {
	calls int
}

func (g *scriptedGenerator) Generate(_ context.Context, _, userPrompt string, _ domain.SamplingParams) (any, error) {
	g.calls++
	switch {
	case strings.Contains(userPrompt, "Outline"):
		return "1. Soil\n2. Seeds\n3. Harvest", nil
	case strings.Contains(userPrompt, "chapter"):
		return fmt.Sprintf("Chapter draft %d", g.calls), nil
	default:
		return "ok", nil
	}
}

// TestBookPipeline drives the full loop: outline once, then write chapters
// until the counter reaches the target, then compile the book.
func TestBookPipeline(t *testing.T) {
	gen := &scriptedGenerator{}

	app := arbor.New(
		arbor.WithGenerator(gen),
		arbor.WithFunction("append_chapter", func(_ context.Context, inputs map[string]any) (any, error) {
			chapters, _ := inputs["chapters"].([]any)
			return append(chapters, inputs["draft"]), nil
		}),
		arbor.WithFunction("count", func(_ context.Context, inputs map[string]any) (any, error) {
			chapters, _ := inputs["chapters"].([]any)
			return len(chapters), nil
		}),
	)

	b := dsl.New("book_pipeline")
	b.Node("outline").
		Generator(domain.GeneratorConfig{
			SystemPrompt: "You are an author.",
			UserPrompt:   "Outline a book about {{.topic}}.",
		}).
		Input("topic", domain.FromKey("topic")).
		Output("outline").Retries(0).Delay(0)
	b.Node("write_chapter").
		Generator(domain.GeneratorConfig{
			UserPrompt: "Write the next chapter for: {{.outline}}",
		}).
		Input("outline", domain.FromKey("outline")).
		Output("draft").Retries(0).Delay(0)
	b.Node("collect").
		Function("append_chapter").
		Input("chapters", domain.FromKeyDefault("chapters", []any{})).
		Input("draft", domain.FromKey("draft")).
		Output("chapters").Retries(0).Delay(0)
	b.Node("tally").
		Function("count").
		Input("chapters", domain.FromKey("chapters")).
		Output("completed_chapters").Retries(0).Delay(0)
	b.Node("compile").
		Template("Book: {{.topic}} ({{.completed_chapters}} chapters)").
		Input("topic", domain.FromKey("topic")).
		Input("completed_chapters", domain.FromKey("completed_chapters")).
		Output("book").Retries(0).Delay(0)

	g, err := b.Start("outline").
		Then("write_chapter").
		Then("collect").
		Then("tally").
		ThenIf("compile", "ctx.completed_chapters >= ctx.num_chapters").
		Build()
	require.NoError(t, err)
	require.NoError(t, g.AddTransition(domain.Transition{
		From: "tally", To: []string{"write_chapter"},
		Condition: "ctx.completed_chapters < ctx.num_chapters",
	}))

	wf, err := app.Compile(g)
	require.NoError(t, err)

	record, err := wf.Run(context.Background(), arbor.Context{
		"topic":        "gardening",
		"num_chapters": 3,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, record.Status)
	assert.Equal(t, 3, record.Context["completed_chapters"])
	chapters, ok := record.Context["chapters"].([]any)
	require.True(t, ok)
	assert.Len(t, chapters, 3)
	assert.Equal(t, "Book: gardening (3 chapters)", record.Context["book"])

	// Outline once plus one generation per chapter.
	assert.Equal(t, 4, gen.calls)

	// The record is retrievable from the store.
	loaded, err := app.Store().Load(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, loaded.Status)
}

const fileTypeDoc = `
name: ingest
functions:
  - classify
  - parse_csv
  - parse_json
  - reject
nodes:
  - id: classify
    kind: function
    inputs_mapping:
      path: path
    output: file_type
    retries: 0
    delay: 0
    function:
      name: classify
  - id: parse_csv
    kind: function
    inputs_mapping:
      path: path
    output: parsed
    retries: 0
    delay: 0
    function:
      name: parse_csv
  - id: parse_json
    kind: function
    inputs_mapping:
      path: path
    output: parsed
    retries: 0
    delay: 0
    function:
      name: parse_json
  - id: reject
    kind: function
    inputs_mapping:
      path: path
    output: parsed
    retries: 0
    delay: 0
    function:
      name: reject
  - id: report
    kind: template
    inputs_mapping:
      parsed: parsed
    output: summary
    retries: 0
    delay: 0
    template_config:
      source: "ingested: {{.parsed}}"
workflow:
  start: classify
  transitions:
    - from_node: classify
      to_node: parse_csv
      condition: 'ctx.file_type == "csv"'
    - from_node: classify
      to_node: parse_json
      condition: 'ctx.file_type == "json"'
    - from_node: classify
      to_node: reject
    - from_node: parse_csv
      to_node: report
    - from_node: parse_json
      to_node: report
    - from_node: reject
      to_node: report
`

// TestFileTypeBranch loads the branching document from YAML and checks
// each arm takes its own path.
func TestFileTypeBranch(t *testing.T) {
	app := arbor.New(
		arbor.WithFunction("classify", func(_ context.Context, inputs map[string]any) (any, error) {
			path, _ := inputs["path"].(string)
			switch {
			case strings.HasSuffix(path, ".csv"):
				return "csv", nil
			case strings.HasSuffix(path, ".json"):
				return "json", nil
			default:
				return "unknown", nil
			}
		}),
		arbor.WithFunction("parse_csv", func(_ context.Context, _ map[string]any) (any, error) {
			return "rows", nil
		}),
		arbor.WithFunction("parse_json", func(_ context.Context, _ map[string]any) (any, error) {
			return "objects", nil
		}),
		arbor.WithFunction("reject", func(_ context.Context, inputs map[string]any) (any, error) {
			return fmt.Sprintf("rejected %v", inputs["path"]), nil
		}),
	)

	wf, err := app.Load([]byte(fileTypeDoc))
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"data.csv", "ingested: rows"},
		{"data.json", "ingested: objects"},
		{"data.bin", "ingested: rejected data.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			record, err := wf.Run(context.Background(), arbor.Context{"path": tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.Context["summary"])
		})
	}
}

func TestLoad_UndeclaredFunctionRejected(t *testing.T) {
	const doc = `
name: needs_host
functions:
  - absent
nodes:
  - id: a
    kind: function
    function: {name: absent}
workflow:
  start: a
`
	app := arbor.New()
	_, err := app.Load([]byte(doc))
	var defErr *domain.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, err.Error(), "absent")
}

func TestLoad_ObserversSection(t *testing.T) {
	const doc = `
name: observed
functions:
  - noop
nodes:
  - id: a
    kind: function
    retries: 0
    delay: 0
    function: {name: noop}
workflow:
  start: a
observers:
  - logging
  - metrics
`
	app := arbor.New(
		arbor.WithFunction("noop", func(_ context.Context, _ map[string]any) (any, error) {
			return "ok", nil
		}),
	)
	require.Nil(t, app.Metrics())

	wf, err := app.Load([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, app.Metrics())

	_, err = wf.Run(context.Background(), nil)
	require.NoError(t, err)

	families, err := app.Metrics().Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "arbor_workflow_runs_total")
}

func TestLoad_UnknownObserverRejected(t *testing.T) {
	const doc = `
name: observed
nodes:
  - id: a
    kind: function
    function: {name: noop}
workflow:
  start: a
observers:
  - telepathy
`
	app := arbor.New()
	_, err := app.Load([]byte(doc))
	var defErr *domain.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestCompile_RejectsInvalidGraph(t *testing.T) {
	b := dsl.New("broken")
	b.Node("a").Function("noop")
	b.Node("b").Function("noop")
	g, err := b.Start("a").Then("b").Then("a").Build() // unguarded cycle
	require.NoError(t, err)

	app := arbor.New()
	_, err = app.Compile(g)
	assert.Error(t, err)
}

func TestRun_FailedRecordPersisted(t *testing.T) {
	app := arbor.New(
		arbor.WithFunction("explode", func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("kaboom")
		}),
	)

	b := dsl.New("failing")
	b.Node("explode").Function("explode").Retries(0).Delay(0)
	g, err := b.Start("explode").Build()
	require.NoError(t, err)

	wf, err := app.Compile(g)
	require.NoError(t, err)

	record, runErr := wf.Run(context.Background(), nil)
	require.Error(t, runErr)
	require.NotNil(t, record)
	assert.Equal(t, domain.RunFailed, record.Status)
	assert.Contains(t, record.Error, "kaboom")

	loaded, err := app.Store().Load(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, loaded.Status)
	assert.Contains(t, loaded.Error, "kaboom")
}
