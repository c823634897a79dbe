package domain

// Context is the single shared key-value store mutated over one run.
//
// It is passed by reference into every node invocation and resolver call.
// It carries no locking: the engine serializes merges at fan-in points, and
// concurrent siblings writing the same key race by design (last write wins,
// deterministic for a fixed scheduling order). Callers needing atomic
// read-modify-write must route it through a single non-parallel node.
type Context map[string]any

// Clone returns a shallow copy. Values are shared; only the top-level map
// is fresh.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge writes key=value, overwriting any previous value.
func (c Context) Merge(key string, value any) {
	c[key] = value
}
