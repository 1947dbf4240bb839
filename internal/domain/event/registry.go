package event

import "sync"

// Registry is the open set of valid event types. Built-in transition names
// are pre-registered; new kinds can be added at wiring time so the audit
// vocabulary can grow without a schema migration.
type Registry struct {
	mu    sync.RWMutex
	types map[string]bool
}

func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]bool)}
	for _, t := range builtinTypes() {
		r.types[t] = true
	}
	return r
}

// Register adds an event type to the registry.
func (r *Registry) Register(types ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t != "" {
			r.types[t] = true
		}
	}
}

// Valid reports whether t is a registered event type.
func (r *Registry) Valid(t string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[t]
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	return out
}
