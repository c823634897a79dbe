package yamldoc

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/pkg/domain"
)

// UnmarshalYAML implements yaml.Unmarshaler for the string-or-list form.
func (s *StringOrSeq) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringOrSeq{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = StringOrSeq(many)
		return nil
	default:
		return fmt.Errorf("to_node must be a string or a list of strings")
	}
}

// MarshalYAML implements yaml.Marshaler.
func (s StringOrSeq) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// ParseFile reads a workflow document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes workflow document bytes. Parse checks structural
// well-formedness only; semantic validation is the validator's job.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow document: %w", err)
	}
	return &doc, nil
}

// LoadFile reads a workflow document from disk and converts it to a graph.
func LoadFile(path string) (*domain.Graph, error) {
	doc, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return doc.ToGraph()
}

// Load parses YAML document bytes into a graph, dropping the document's
// functions and observers sections; callers that need those use Parse.
func Load(data []byte) (*domain.Graph, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.ToGraph()
}

// ToGraph converts the document to its domain form.
func (d *Document) ToGraph() (*domain.Graph, error) {
	g := domain.NewGraph(d.Name)
	g.Start = d.Workflow.Start

	for i := range d.Nodes {
		node, err := d.Nodes[i].toNode()
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, t := range d.Workflow.Transitions {
		tr := domain.Transition{
			From:      t.From,
			To:        []string(t.To),
			Condition: t.Condition,
		}
		if err := g.AddTransition(tr); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (n *NodeDoc) toNode() (*domain.Node, error) {
	node := &domain.Node{
		ID:             n.ID,
		Kind:           domain.Kind(n.Kind),
		OutputKey:      n.Output,
		Retries:        domain.DefaultRetries,
		Delay:          domain.DefaultDelay,
		Parallelizable: n.Parallel,
	}

	if n.Retries != nil {
		node.Retries = *n.Retries
	}
	if n.Delay != nil {
		node.Delay = secondsToDuration(*n.Delay)
	}
	if n.Timeout != nil {
		node.Timeout = secondsToDuration(*n.Timeout)
	}

	if len(n.InputsMapping) > 0 {
		node.Inputs = make(map[string]domain.InputSource, len(n.InputsMapping))
		for param, raw := range n.InputsMapping {
			src, err := decodeInputSource(raw)
			if err != nil {
				return nil, fmt.Errorf("node %q: input %q: %w", n.ID, param, err)
			}
			node.Inputs[param] = src
		}
	}

	if n.Function != nil {
		node.Function = &domain.FunctionConfig{Name: n.Function.Name}
	}
	if n.LLM != nil {
		gen := &domain.GeneratorConfig{
			SystemPrompt: n.LLM.SystemPrompt,
			UserPrompt:   n.LLM.UserPrompt,
		}
		if len(n.LLM.Params) > 0 {
			if err := mapstructure.Decode(n.LLM.Params, &gen.Params); err != nil {
				return nil, fmt.Errorf("node %q: llm_config params: %w", n.ID, err)
			}
		}
		node.Generator = gen
	}
	if n.Template != nil {
		node.Template = &domain.TemplateConfig{Source: n.Template.Source}
	}
	if n.SubWorkflow != nil {
		if n.SubWorkflow.Graph == nil {
			return nil, fmt.Errorf("node %q: sub_workflow requires a graph", n.ID)
		}
		inner, err := n.SubWorkflow.Graph.ToGraph()
		if err != nil {
			return nil, fmt.Errorf("node %q: sub_workflow: %w", n.ID, err)
		}
		node.SubWorkflow = &domain.SubWorkflowConfig{
			Graph:          inner,
			ContextMapping: n.SubWorkflow.ContextMapping,
		}
	}

	return node, nil
}

// inputSourceDoc is the long form of an input entry.
type inputSourceDoc struct {
	Key     string `mapstructure:"key"`
	Default any    `mapstructure:"default"`
	Value   any    `mapstructure:"value"`
	Expr    string `mapstructure:"expr"`
}

// decodeInputSource accepts either the string shorthand (a context key) or
// the long map form with key/default/value/expr fields.
func decodeInputSource(raw any) (domain.InputSource, error) {
	switch v := raw.(type) {
	case string:
		return domain.FromKey(v), nil
	case map[string]any:
		var doc inputSourceDoc
		if err := mapstructure.Decode(v, &doc); err != nil {
			return domain.InputSource{}, err
		}

		_, hasDefault := v["default"]
		_, hasValue := v["value"]

		set := 0
		if doc.Key != "" {
			set++
		}
		if hasValue {
			set++
		}
		if doc.Expr != "" {
			set++
		}
		if set != 1 {
			return domain.InputSource{}, fmt.Errorf("exactly one of key, value, or expr must be set")
		}
		if hasDefault && doc.Key == "" {
			return domain.InputSource{}, fmt.Errorf("default requires key")
		}

		return domain.InputSource{
			Key:        doc.Key,
			Default:    doc.Default,
			HasDefault: hasDefault,
			Value:      doc.Value,
			HasValue:   hasValue,
			Expr:       doc.Expr,
		}, nil
	default:
		return domain.InputSource{}, fmt.Errorf("expected a context key or a mapping, got %T", raw)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
