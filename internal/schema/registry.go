package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Registry holds the registered entity types by name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register validates def and adds it to the registry.
// Returns ErrDuplicateEntityType if the name or table is already taken.
func (r *Registry) Register(def EntityDef) (*EntityType, error) {
	et, err := newEntityType(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[et.name]; ok {
		return nil, fmt.Errorf("%w: %s", types.ErrDuplicateEntityType, et.name)
	}
	for _, other := range r.types {
		if other.table == et.table {
			return nil, fmt.Errorf("%w: table %s is used by %s", types.ErrDuplicateEntityType, et.table, other.name)
		}
	}
	r.types[et.name] = et
	return et, nil
}

// RegisterAll registers every definition, stopping at the first failure.
func (r *Registry) RegisterAll(defs []EntityDef) error {
	for _, def := range defs {
		if _, err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the entity type registered under name.
// Returns ErrEntityTypeNotFound if there is none.
func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	et, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrEntityTypeNotFound, name)
	}
	return et, nil
}

// Types returns all registered entity types sorted by name.
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EntityType, 0, len(r.types))
	for _, et := range r.types {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
