// Package validator runs static analysis over a finished graph before its
// first execution: reference integrity, reachability, cycle detection, and
// expression syntax. A graph that validates never fails on these grounds
// at runtime.
package validator

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Issue codes reported by the validator.
const (
	CodeBadReference   = "bad_reference"
	CodeMissingConfig  = "missing_config"
	CodeUnreachable    = "unreachable"
	CodeUnguardedLoop  = "unguarded_loop"
	CodeBadExpression  = "bad_expression"
	CodeParallelShared = "parallel_shared_subworkflow"
)

// Issue is a single finding.
type Issue struct {
	Code   string
	NodeID string
	Detail string
	Fatal  bool
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Detail)
	}
	return fmt.Sprintf("%s: node %q: %s", i.Code, i.NodeID, i.Detail)
}

// Error aggregates all fatal findings for one graph.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Fatal {
			parts = append(parts, issue.String())
		}
	}
	return fmt.Sprintf("graph validation failed: %s", strings.Join(parts, "; "))
}

// Option configures a Validator.
type Option func(*Validator)

// WithLenientReachability downgrades unreachable-node findings from fatal
// to logged warnings.
func WithLenientReachability() Option {
	return func(v *Validator) {
		v.lenientReachability = true
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// Validator performs the pre-run static checks.
type Validator struct {
	lenientReachability bool
	logger              *slog.Logger
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate inspects the graph and returns *Error if any fatal issue is
// found. Non-fatal issues are logged as warnings.
func (v *Validator) Validate(g *domain.Graph) error {
	var issues []Issue
	issues = append(issues, v.checkReferences(g)...)

	// Structural checks only make sense on a referentially intact graph.
	if !hasFatal(issues) {
		issues = append(issues, v.checkReachability(g)...)
		issues = append(issues, v.checkCycles(g)...)
		issues = append(issues, v.checkParallelGroups(g)...)
	}
	issues = append(issues, v.checkExpressions(g)...)

	for _, issue := range issues {
		if !issue.Fatal {
			v.logger.Warn("validation warning", "code", issue.Code, "node", issue.NodeID, "detail", issue.Detail)
		}
	}

	if hasFatal(issues) {
		return &Error{Issues: issues}
	}
	return nil
}

func hasFatal(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Fatal {
			return true
		}
	}
	return false
}

// checkReferences verifies the start node, transition endpoints, and that
// each node carries exactly the config body its kind demands.
func (v *Validator) checkReferences(g *domain.Graph) []Issue {
	var issues []Issue

	if g.Start == "" {
		issues = append(issues, Issue{Code: CodeBadReference, Detail: "graph has no start node", Fatal: true})
	} else if _, ok := g.Nodes[g.Start]; !ok {
		issues = append(issues, Issue{Code: CodeBadReference, NodeID: g.Start, Detail: "start node is not declared", Fatal: true})
	}

	for from, outgoing := range g.Transitions {
		if _, ok := g.Nodes[from]; !ok {
			issues = append(issues, Issue{Code: CodeBadReference, NodeID: from, Detail: "transition from undeclared node", Fatal: true})
		}
		for _, t := range outgoing {
			for _, to := range t.To {
				if _, ok := g.Nodes[to]; !ok {
					issues = append(issues, Issue{Code: CodeBadReference, NodeID: to, Detail: fmt.Sprintf("transition target of %q is not declared", from), Fatal: true})
				}
			}
		}
	}

	for id, node := range g.Nodes {
		if node.Kind == "" {
			issues = append(issues, Issue{Code: CodeMissingConfig, NodeID: id, Detail: "node has no kind", Fatal: true})
			continue
		}
		if got := node.ConfigKind(); got != node.Kind {
			detail := fmt.Sprintf("kind is %q but config body is %q", node.Kind, got)
			if got == "" {
				detail = fmt.Sprintf("kind %q has no config body", node.Kind)
			}
			issues = append(issues, Issue{Code: CodeMissingConfig, NodeID: id, Detail: detail, Fatal: true})
		}
	}

	return issues
}

// checkReachability walks from the start node and reports everything the
// walk never touches.
func (v *Validator) checkReachability(g *domain.Graph) []Issue {
	visited := make(map[string]bool, len(g.Nodes))
	queue := []string{g.Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, t := range g.Outgoing(current) {
			for _, to := range t.To {
				if !visited[to] {
					queue = append(queue, to)
				}
			}
		}
	}

	var unreachable []string
	for id := range g.Nodes {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)

	issues := make([]Issue, 0, len(unreachable))
	for _, id := range unreachable {
		issues = append(issues, Issue{
			Code:   CodeUnreachable,
			NodeID: id,
			Detail: "not reachable from start",
			Fatal:  !v.lenientReachability,
		})
	}
	return issues
}

// checkCycles rejects cycles made entirely of unconditional edges. A cycle
// carrying at least one conditioned edge is a guarded loop and is allowed:
// the condition is its exit. Detection runs on the subgraph of
// unconditional edges only, where any cycle is by construction unguarded.
func (v *Validator) checkCycles(g *domain.Graph) []Issue {
	edges := make(map[string][]string, len(g.Nodes))
	for from, outgoing := range g.Transitions {
		for _, t := range outgoing {
			if t.Condition != "" {
				continue
			}
			edges[from] = append(edges[from], t.To...)
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Nodes))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		state[id] = inStack
		path = append(path, id)
		for _, next := range edges[id] {
			switch state[next] {
			case inStack:
				// Trim the path to the cycle itself.
				for i, p := range path {
					if p == next {
						cycle = append([]string(nil), path[i:]...)
						return true
					}
				}
				cycle = append([]string(nil), path...)
				return true
			case unvisited:
				if visit(next, path) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited && visit(id, nil) {
			return []Issue{{
				Code:   CodeUnguardedLoop,
				NodeID: cycle[0],
				Detail: fmt.Sprintf("unconditional cycle: %s", strings.Join(cycle, " -> ")),
				Fatal:  true,
			}}
		}
	}
	return nil
}

// checkParallelGroups rejects shared-context sub-workflows as parallel
// siblings. Without a context mapping the inner run writes the outer
// context directly, and two such siblings would write the same map
// concurrently.
func (v *Validator) checkParallelGroups(g *domain.Graph) []Issue {
	var issues []Issue
	for from, outgoing := range g.Transitions {
		for _, t := range outgoing {
			if !t.IsParallel() {
				continue
			}
			for _, to := range t.To {
				node := g.Nodes[to]
				if node.Kind != domain.KindSubWorkflow || node.SubWorkflow == nil {
					continue
				}
				if len(node.SubWorkflow.ContextMapping) == 0 {
					issues = append(issues, Issue{
						Code:   CodeParallelShared,
						NodeID: to,
						Detail: fmt.Sprintf("shared-context sub-workflow in parallel group of %q; give it a context_mapping", from),
						Fatal:  true,
					})
				}
			}
		}
	}
	return issues
}

// checkExpressions parses (without evaluating) every condition and every
// input expression.
func (v *Validator) checkExpressions(g *domain.Graph) []Issue {
	var issues []Issue

	for from, outgoing := range g.Transitions {
		for _, t := range outgoing {
			if t.Condition == "" {
				continue
			}
			if err := expr.CheckSyntax(t.Condition); err != nil {
				issues = append(issues, Issue{Code: CodeBadExpression, NodeID: from, Detail: err.Error(), Fatal: true})
			}
		}
	}

	for id, node := range g.Nodes {
		for param, src := range node.Inputs {
			if src.Expr == "" {
				continue
			}
			if err := expr.CheckSyntax(src.Expr); err != nil {
				issues = append(issues, Issue{Code: CodeBadExpression, NodeID: id, Detail: fmt.Sprintf("input %q: %v", param, err), Fatal: true})
			}
		}
		if node.SubWorkflow != nil && node.SubWorkflow.Graph != nil {
			if err := v.Validate(node.SubWorkflow.Graph); err != nil {
				issues = append(issues, Issue{Code: CodeBadReference, NodeID: id, Detail: fmt.Sprintf("sub-workflow: %v", err), Fatal: true})
			}
		}
	}

	return issues
}
