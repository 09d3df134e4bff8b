package paramtypes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"voxcmd/internal/grammar"
	"voxcmd/pkg/voxtypes"
)

// Registry maps type names to types. It is append-only; Freeze makes it
// read-only before serving.
type Registry struct {
	mu     sync.RWMutex
	id     string
	types  map[string]*Type
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		id:    uuid.NewString(),
		types: make(map[string]*Type),
	}
}

// NewDefaultRegistry creates a registry holding the built-in types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range Builtins() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t. Registering the same *Type twice is a no-op; a different
// type under an existing name is a configuration error.
func (r *Registry) Register(t *Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == nil || t.name == "" {
		return voxtypes.ConfigErrorf("parameter type", "type name cannot be empty")
	}
	if r.frozen {
		return voxtypes.ConfigErrorf("type "+t.name, "registry is frozen")
	}
	if existing, exists := r.types[t.name]; exists {
		if existing == t {
			return nil
		}
		return voxtypes.ConfigErrorf("type "+t.name, "type %s already registered", t.name)
	}
	if err := t.checkFields(); err != nil {
		return err
	}

	r.types[t.name] = t
	return nil
}

// Resolve implements grammar.Resolver.
func (r *Registry) Resolve(name string) (grammar.ParamType, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown parameter type: %s", name)
	}
	return t, nil
}

// ID implements grammar.Resolver.
func (r *Registry) ID() string {
	return r.id
}

// Get retrieves a type by name.
func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze rejects further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
