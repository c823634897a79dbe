package yamldoc

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/pkg/domain"
)

// Serialize renders a graph as YAML document bytes. Loading the output
// yields an equivalent graph: same nodes, transitions and policy.
func Serialize(g *domain.Graph) ([]byte, error) {
	doc, err := FromGraph(g)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow document: %w", err)
	}
	return data, nil
}

// SaveFile writes the graph's document form to disk.
func SaveFile(g *domain.Graph, path string) error {
	data, err := Serialize(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FromGraph converts a graph to its document form. Nodes are emitted in
// traversal order from the start node (leftovers sorted by ID) so output
// is deterministic across runs. The functions section is derived from the
// function nodes the graph references.
func FromGraph(g *domain.Graph) (*Document, error) {
	doc := &Document{
		Name:     g.Name,
		Workflow: WorkflowDoc{Start: g.Start},
	}

	order := nodeOrder(g)
	seen := make(map[string]bool)
	for _, id := range order {
		node := g.Nodes[id]
		nd, err := fromNode(node)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, nd)

		if node.Function != nil && !seen[node.Function.Name] {
			seen[node.Function.Name] = true
			doc.Functions = append(doc.Functions, node.Function.Name)
		}
	}
	sort.Strings(doc.Functions)

	for _, id := range order {
		for _, t := range g.Outgoing(id) {
			doc.Workflow.Transitions = append(doc.Workflow.Transitions, TransitionDoc{
				From:      t.From,
				To:        StringOrSeq(t.To),
				Condition: t.Condition,
			})
		}
	}

	return doc, nil
}

// nodeOrder walks transitions breadth-first from the start node, then
// appends any unreachable nodes sorted by ID.
func nodeOrder(g *domain.Graph) []string {
	var order []string
	seen := make(map[string]bool)

	queue := []string{g.Start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		if _, ok := g.Nodes[id]; !ok {
			continue
		}
		seen[id] = true
		order = append(order, id)
		for _, t := range g.Outgoing(id) {
			queue = append(queue, t.To...)
		}
	}

	var rest []string
	for id := range g.Nodes {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func fromNode(n *domain.Node) (NodeDoc, error) {
	nd := NodeDoc{
		ID:       n.ID,
		Kind:     string(n.Kind),
		Output:   n.OutputKey,
		Parallel: n.Parallelizable,
	}

	retries := n.Retries
	nd.Retries = &retries
	delay := durationToSeconds(n.Delay)
	nd.Delay = &delay
	if n.Timeout > 0 {
		timeout := durationToSeconds(n.Timeout)
		nd.Timeout = &timeout
	}

	if len(n.Inputs) > 0 {
		nd.InputsMapping = make(map[string]any, len(n.Inputs))
		for param, src := range n.Inputs {
			nd.InputsMapping[param] = encodeInputSource(src)
		}
	}

	if n.Function != nil {
		nd.Function = &FunctionDoc{Name: n.Function.Name}
	}
	if n.Generator != nil {
		nd.LLM = &LLMConfigDoc{
			SystemPrompt: n.Generator.SystemPrompt,
			UserPrompt:   n.Generator.UserPrompt,
			Params:       encodeSamplingParams(n.Generator.Params),
		}
	}
	if n.Template != nil {
		nd.Template = &TemplateConfigDoc{Source: n.Template.Source}
	}
	if n.SubWorkflow != nil {
		inner, err := FromGraph(n.SubWorkflow.Graph)
		if err != nil {
			return NodeDoc{}, fmt.Errorf("node %q: sub_workflow: %w", n.ID, err)
		}
		nd.SubWorkflow = &SubWorkflowDoc{
			Graph:          inner,
			ContextMapping: n.SubWorkflow.ContextMapping,
		}
	}

	return nd, nil
}

// encodeInputSource emits the string shorthand for a bare key reference
// and the long map form otherwise.
func encodeInputSource(src domain.InputSource) any {
	if src.Key != "" && !src.HasDefault {
		return src.Key
	}

	m := make(map[string]any)
	switch {
	case src.Key != "":
		m["key"] = src.Key
		if src.HasDefault {
			m["default"] = src.Default
		}
	case src.HasValue:
		m["value"] = src.Value
	case src.Expr != "":
		m["expr"] = src.Expr
	}
	return m
}

func encodeSamplingParams(p domain.SamplingParams) map[string]any {
	m := make(map[string]any)
	if p.Model != "" {
		m["model"] = p.Model
	}
	if p.Temperature != 0 {
		m["temperature"] = p.Temperature
	}
	if p.MaxTokens != 0 {
		m["max_tokens"] = p.MaxTokens
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func durationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
