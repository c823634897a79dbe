// Package domain contains the core entities of an Arbor workflow:
// nodes, transitions, the graph, the shared execution context, and the
// lifecycle events emitted while a run advances.
//
// Everything here is storage- and transport-agnostic. Adapters (YAML
// documents, HTTP, Redis) translate to and from these types.
package domain
