package pal

import (
	"sort"
	"sync"
)

// Registry holds the structural descriptors of all mapped model types,
// keyed by type name. Descriptors are registered once (normally by
// generated code at init time) and cached for the process lifetime;
// Reset exists for switching to a different mapped-type set.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema. The descriptor must carry a constructor and
// identity accessors, and every collection-association field must name a
// target type.
func (r *Registry) Register(s *Schema) error {
	if s == nil || s.Name == "" {
		return schemaErr("schema without a name")
	}
	if s.New == nil {
		return schemaErr("%s has no constructor", s.Name)
	}
	if s.GetID == nil || s.SetID == nil {
		return schemaErr("%s has no identity accessors", s.Name)
	}
	for _, rf := range s.Refs {
		if rf.Target == "" || rf.Get == nil || rf.Set == nil {
			return schemaErr("%s.%s is not a usable reference field", s.Name, rf.Name)
		}
	}
	for _, lf := range s.Lists {
		if lf.Target == "" || lf.Get == nil || lf.Append == nil {
			return schemaErr("%s.%s is not a usable collection field", s.Name, lf.Name)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name] = s
	return nil
}

// Lookup resolves a model type name to its schema.
func (r *Registry) Lookup(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, typeErr(name)
	}
	return s, nil
}

// Names returns all registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registered schema.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*Schema)
}

func (r *Registry) schemaOf(m Model) (*Schema, error) {
	return r.Lookup(m.ModelName())
}
