// Package dsl provides the fluent construction API for workflow graphs.
//
// Nodes are declared with Node(id) and wired with Start/Then/Parallel/
// Branch. Declaration order of transitions is preserved: the engine picks
// the first transition whose condition holds.
//
// A Branch without an explicit next node leaves its arms "open"; the next
// Then call converges every open arm onto its target. This auto-deduction
// is transition-for-transition identical to spelling out default and
// next_node explicitly (see builder tests).
package dsl
