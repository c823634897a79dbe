// Package registry holds the named host functions that Function nodes and
// the document's functions section refer to.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Function is the signature for a host-side node body. It receives the
// node's resolved inputs and returns the value merged under the node's
// output key.
type Function func(ctx context.Context, inputs map[string]any) (any, error)

// Registry manages the available functions.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		fns: make(map[string]Function),
	}
}

// Register adds a function. An existing name is overwritten.
func (r *Registry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Has reports whether a function is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fns[name]
	return ok
}

// Call looks a function up and executes it.
func (r *Registry) Call(ctx context.Context, name string, inputs map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("function not registered: %s", name)
	}
	return fn(ctx, inputs)
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
