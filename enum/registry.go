package enum

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps enumeration identities to their live handles so every
// known enumeration can be re-synchronized in bulk after an event that may
// have changed backing-store contents (deploy, schema reload). A single
// mutex guards the map; snapshot publication itself is atomic per enum.
type Registry struct {
	mu    sync.Mutex
	enums map[string]*Enum
}

// DefaultRegistry is the process-wide registry used unless WithRegistry
// overrides it. It lives for the process lifetime.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		enums: make(map[string]*Enum),
	}
}

// register records a handle under its identity. Re-registering the same
// identity swaps the handle (a code reload re-runs initialization), but
// only when the definitions are compatible; anything else is a wiring bug.
func (r *Registry) register(e *Enum) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.enums[e.Name()]; ok && !prev.def.compatibleWith(e.def) {
		return fmt.Errorf("%w: %q registered twice with different definitions", ErrIdentityMismatch, e.Name())
	}
	r.enums[e.Name()] = e
	return nil
}

// Lookup returns the handle registered under name
func (r *Registry) Lookup(name string) (*Enum, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enums[name]
	return e, ok
}

// Names returns the registered enumeration identities, sorted
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered handle, sorted by identity
func (r *Registry) All() []*Enum {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Enum, 0, len(names))
	for _, name := range names {
		out = append(out, r.enums[name])
	}
	return out
}

// ReinitializeAll re-synchronizes every registered enumeration. An
// enumeration that can no longer be resolved is a configuration error, not
// a silent skip. Reinitialization runs outside the registry lock so slow
// stores do not block lookups.
func (r *Registry) ReinitializeAll(ctx context.Context) error {
	for _, name := range r.Names() {
		e, ok := r.Lookup(name)
		if !ok || e == nil {
			return fmt.Errorf("%w: enum %q can no longer be resolved", ErrConfiguration, name)
		}
		if err := e.Reinitialize(ctx); err != nil {
			return fmt.Errorf("failed to reinitialize enum %q: %w", name, err)
		}
	}
	return nil
}
