package domain

import "time"

// Kind identifies the executable behavior of a node.
type Kind string

const (
	// KindFunction runs a named host function from the registry.
	KindFunction Kind = "function"
	// KindGenerator delegates to an external text-generation collaborator.
	KindGenerator Kind = "generator"
	// KindTemplate delegates to an external template-rendering collaborator.
	KindTemplate Kind = "template"
	// KindSubWorkflow executes an embedded graph, sharing or mapping context.
	KindSubWorkflow Kind = "sub_workflow"
)

// Execution policy defaults applied when a node does not specify its own.
const (
	DefaultRetries = 3
	DefaultDelay   = time.Second
)

// Node is a single unit of work in the graph.
// Exactly one kind-specific config body must be set, matching Kind.
type Node struct {
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"kind" yaml:"kind"`

	// Inputs maps parameter names to their sources in the execution context.
	Inputs map[string]InputSource `json:"inputs_mapping,omitempty" yaml:"inputs_mapping,omitempty"`

	// OutputKey is the context key the node's result is merged under.
	// Empty means the result is discarded (side-effect-only node).
	OutputKey string `json:"output,omitempty" yaml:"output,omitempty"`

	// Retries is the number of re-attempts after a failed invocation.
	// Total attempts = Retries + 1.
	Retries int `json:"retries" yaml:"retries"`
	// Delay is the pause between attempts.
	Delay time.Duration `json:"delay" yaml:"delay"`
	// Timeout bounds a single attempt. Zero means unbounded.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Parallelizable marks the node as safe to run inside a fan-out group.
	// Informational: the engine does not enforce it.
	Parallelizable bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	Function    *FunctionConfig    `json:"function,omitempty" yaml:"function,omitempty"`
	Generator   *GeneratorConfig   `json:"generator,omitempty" yaml:"generator,omitempty"`
	Template    *TemplateConfig    `json:"template,omitempty" yaml:"template,omitempty"`
	SubWorkflow *SubWorkflowConfig `json:"sub_workflow,omitempty" yaml:"sub_workflow,omitempty"`
}

// ConfigKind reports which kind-specific body is attached, or "" if none.
func (n *Node) ConfigKind() Kind {
	switch {
	case n.Function != nil:
		return KindFunction
	case n.Generator != nil:
		return KindGenerator
	case n.Template != nil:
		return KindTemplate
	case n.SubWorkflow != nil:
		return KindSubWorkflow
	}
	return ""
}

// FunctionConfig references a named function in the host registry.
type FunctionConfig struct {
	Name string `json:"name" yaml:"name"`
}

// GeneratorConfig describes a call to the text-generation collaborator.
// Prompts are rendered with the node's resolved inputs before the call.
type GeneratorConfig struct {
	SystemPrompt string         `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	UserPrompt   string         `json:"user_prompt" yaml:"user_prompt"`
	Params       SamplingParams `json:"params,omitempty" yaml:"params,omitempty"`
}

// SamplingParams are passed through to the generator untouched.
type SamplingParams struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// TemplateConfig holds the template source passed to the rendering collaborator.
type TemplateConfig struct {
	Source string `json:"source" yaml:"source"`
}

// SubWorkflowConfig embeds another graph.
//
// With a non-empty ContextMapping the inner run starts from a fresh context
// seeded by mapping (inner key <- outer key) and the inner final context is
// the node's result. With an empty mapping the inner run shares the outer
// context by reference and its writes land there directly.
type SubWorkflowConfig struct {
	Graph          *Graph            `json:"graph" yaml:"graph"`
	ContextMapping map[string]string `json:"context_mapping,omitempty" yaml:"context_mapping,omitempty"`
}

// InputSource describes where one parameter value comes from.
// Exactly one of Key, Expr, or a literal (HasValue) is used.
type InputSource struct {
	// Key looks the parameter up in the execution context.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	// Default is returned when Key is absent from the context.
	Default    any  `json:"default,omitempty" yaml:"default,omitempty"`
	HasDefault bool `json:"-" yaml:"-"`

	// Value is a literal passed verbatim.
	Value    any  `json:"value,omitempty" yaml:"value,omitempty"`
	HasValue bool `json:"-" yaml:"-"`

	// Expr is a sandboxed expression over the context.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// FromKey references a context key with no default.
func FromKey(key string) InputSource {
	return InputSource{Key: key}
}

// FromKeyDefault references a context key, falling back to def when absent.
func FromKeyDefault(key string, def any) InputSource {
	return InputSource{Key: key, Default: def, HasDefault: true}
}

// Literal passes v through verbatim.
func Literal(v any) InputSource {
	return InputSource{Value: v, HasValue: true}
}

// Expr evaluates a sandboxed expression against the context.
func Expr(src string) InputSource {
	return InputSource{Expr: src}
}
