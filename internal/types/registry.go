package types

import (
	"reflect"
	"sync"
)

// registryUnit is a Registry-backed unit.
type registryUnit struct {
	name  string
	types map[string]reflect.Type
}

func (u *registryUnit) Name() string                   { return u.name }
func (u *registryUnit) Types() map[string]reflect.Type { return u.types }

// Registry is the default UnitSource: a mutable set of named units,
// each exposing public types under full dotted names.
type Registry struct {
	mu    sync.Mutex
	units []*registryUnit
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a unit, replacing any unit with the same name. The type
// map is keyed by full dotted name ("text.Builder").
func (r *Registry) Register(name string, types map[string]reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		if u.name == name {
			u.types = types
			return
		}
	}
	r.units = append(r.units, &registryUnit{name: name, types: types})
}

// Units implements UnitSource.
func (r *Registry) Units() []Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Unit, len(r.units))
	for i, u := range r.units {
		out[i] = u
	}
	return out
}
