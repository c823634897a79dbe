// Package graph renders workflow definitions as Mermaid flowcharts for
// docs, the CLI and the HTTP visualizer.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GenerateMermaid produces Mermaid flowchart syntax for a workflow graph.
// It applies semantic styling:
// - Start: ((Circle))
// - Sub-workflow: [[Subroutine]]
// - Generator: [/Parallelogram/]
// - Default: [Rectangle]
// Conditional transitions carry their guard as an edge label; parallel
// fan-out edges are drawn thick (==>).
func GenerateMermaid(g *domain.Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ids := g.NodeIDs()
	sort.Strings(ids)

	for _, id := range ids {
		node := g.Nodes[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == g.Start:
			opener, closer = "((", "))"
		case node.Kind == domain.KindSubWorkflow:
			opener, closer = "[[", "]]"
		case node.Kind == domain.KindGenerator:
			opener, closer = "[/", "/]"
		}

		label := id
		if node.Timeout > 0 {
			label = fmt.Sprintf("%s <br/> ⏱️ %s", id, node.Timeout)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		for _, t := range g.Outgoing(id) {
			for _, to := range t.To {
				safeTo := sanitizeMermaidID(to)

				arrow := "-->"
				if t.IsParallel() {
					arrow = "==>"
				}
				if t.Condition != "" {
					safeCondition := strings.ReplaceAll(t.Condition, "\"", "'")
					arrow = fmt.Sprintf("-- \"%s\" -->", safeCondition)
					if t.IsParallel() {
						arrow = fmt.Sprintf("== \"%s\" ==>", safeCondition)
					}
				}
				sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeTo))
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
