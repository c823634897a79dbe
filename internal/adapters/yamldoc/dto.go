package yamldoc

// Document is the YAML wire form of a workflow. Sections: functions
// (registry names the document expects the host to provide), nodes,
// workflow (start node + transitions), observers (built-in observer
// names attached at compile time).
type Document struct {
	Name      string      `yaml:"name"`
	Functions []string    `yaml:"functions,omitempty"`
	Nodes     []NodeDoc   `yaml:"nodes"`
	Workflow  WorkflowDoc `yaml:"workflow"`
	Observers []string    `yaml:"observers,omitempty"`
}

// WorkflowDoc is the control-flow section.
type WorkflowDoc struct {
	Start       string          `yaml:"start"`
	Transitions []TransitionDoc `yaml:"transitions,omitempty"`
}

// NodeDoc is one node entry. Policy fields are pointers so that an absent
// field and an explicit zero remain distinguishable: absent retries means
// the engine default, retries: 0 means none.
type NodeDoc struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`

	// InputsMapping values are either a plain string (context key
	// shorthand) or a map with key/default/value/expr fields.
	InputsMapping map[string]any `yaml:"inputs_mapping,omitempty"`

	Output string `yaml:"output,omitempty"`

	Retries *int     `yaml:"retries,omitempty"`
	Delay   *float64 `yaml:"delay,omitempty"`   // seconds
	Timeout *float64 `yaml:"timeout,omitempty"` // seconds

	Parallel bool `yaml:"parallel,omitempty"`

	Function    *FunctionDoc       `yaml:"function,omitempty"`
	LLM         *LLMConfigDoc      `yaml:"llm_config,omitempty"`
	Template    *TemplateConfigDoc `yaml:"template_config,omitempty"`
	SubWorkflow *SubWorkflowDoc    `yaml:"sub_workflow,omitempty"`
}

type FunctionDoc struct {
	Name string `yaml:"name"`
}

type LLMConfigDoc struct {
	SystemPrompt string         `yaml:"system_prompt,omitempty"`
	UserPrompt   string         `yaml:"user_prompt"`
	Params       map[string]any `yaml:"params,omitempty"`
}

type TemplateConfigDoc struct {
	Source string `yaml:"source"`
}

type SubWorkflowDoc struct {
	Graph          *Document         `yaml:"graph"`
	ContextMapping map[string]string `yaml:"context_mapping,omitempty"`
}

// TransitionDoc is one transition entry. To accepts a single target or a
// list; a list declares a parallel fan-out group.
type TransitionDoc struct {
	From      string      `yaml:"from_node"`
	To        StringOrSeq `yaml:"to_node"`
	Condition string      `yaml:"condition,omitempty"`
}

// StringOrSeq unmarshals from either a YAML scalar or a sequence of
// scalars, and marshals back to the shorter form when it holds one entry.
type StringOrSeq []string
