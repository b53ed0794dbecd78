// Package types resolves textual type names against the loaded program
// units and memoizes the outcome, found or not. It backs both the
// symbol rewriter's cast inference and the introspection service.
package types

import (
	"reflect"
	"sync"
)

// Descriptor is a resolved type.
type Descriptor struct {
	// Name is the short name the lookup was made under.
	Name string
	// FullName is the namespace-qualified name it resolved to.
	FullName string
	// Type is the concrete runtime type.
	Type reflect.Type
}

// Unit is one loadable program unit exposing its public types, keyed by
// full dotted name. It is the reflection collaborator boundary.
type Unit interface {
	Name() string
	Types() map[string]reflect.Type
}

// UnitSource enumerates the currently loaded units.
type UnitSource interface {
	Units() []Unit
}

// Resolver resolves type names with a positive and negative cache. The
// cache may be consulted from a background member search concurrently
// with the session thread, so one mutex guards lookup and update.
type Resolver struct {
	mu         sync.Mutex
	cache      map[string]*Descriptor // nil entry = cached not-found
	units      UnitSource
	namespaces []string
}

// NewResolver returns a resolver over the given unit source.
func NewResolver(units UnitSource) *Resolver {
	return &Resolver{
		cache: make(map[string]*Descriptor),
		units: units,
	}
}

// AddNamespace appends a namespace to the search list. Namespaces are
// never reordered; search order follows registration order.
func (r *Resolver) AddNamespace(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.namespaces {
		if have == ns {
			return
		}
	}
	r.namespaces = append(r.namespaces, ns)
}

// Namespaces returns the registered namespaces in search order.
func (r *Resolver) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.namespaces...)
}

// Resolve maps a textual type name to a descriptor. Search order: cache,
// well-known names, exact match across loaded units, then
// namespace-qualified match per registered namespace. Both hits and
// misses are cached under the exact input string, so the same short
// name is never re-searched even if the namespace context changes
// later; that trade-off is deliberate.
func (r *Resolver) Resolve(name string) (*Descriptor, bool) {
	r.mu.Lock()
	if d, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return d, d != nil
	}
	namespaces := append([]string(nil), r.namespaces...)
	r.mu.Unlock()

	d := r.search(name, namespaces)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Last-found-wins: a racing not-found must not clobber a found
	// entry for the same key.
	if prev, ok := r.cache[name]; ok && prev != nil && d == nil {
		return prev, true
	}
	r.cache[name] = d
	return d, d != nil
}

func (r *Resolver) search(name string, namespaces []string) *Descriptor {
	if t, ok := wellKnown[name]; ok {
		return &Descriptor{Name: name, FullName: name, Type: t}
	}
	if r.units == nil {
		return nil
	}
	units := r.units.Units()
	for _, u := range units {
		if t, ok := u.Types()[name]; ok {
			return &Descriptor{Name: name, FullName: name, Type: t}
		}
	}
	for _, ns := range namespaces {
		full := ns + "." + name
		for _, u := range units {
			if t, ok := u.Types()[full]; ok {
				return &Descriptor{Name: name, FullName: full, Type: t}
			}
		}
	}
	return nil
}

// wellKnown short-circuits the builtin value types before any unit scan.
var wellKnown = map[string]reflect.Type{
	"int":    reflect.TypeOf(int(0)),
	"int32":  reflect.TypeOf(int32(0)),
	"int64":  reflect.TypeOf(int64(0)),
	"uint":   reflect.TypeOf(uint(0)),
	"float":  reflect.TypeOf(float32(0)),
	"double": reflect.TypeOf(float64(0)),
	"bool":   reflect.TypeOf(false),
	"string": reflect.TypeOf(""),
	"char":   reflect.TypeOf(rune(0)),
	"byte":   reflect.TypeOf(byte(0)),
	"object": reflect.TypeOf((*any)(nil)).Elem(),
}

// DisplayName renders the short type name used in console output and in
// inferred casts. Builtin kinds use the interactive aliases; everything
// else uses the reflected type string.
func DisplayName(v any) string {
	if v == nil {
		return "null"
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Int:
		return "int"
	case reflect.Int64:
		return "int64"
	case reflect.Int32:
		// rune and int32 are indistinguishable; the interactive alias
		// wins.
		return "char"
	case reflect.Uint8:
		return "byte"
	case reflect.Float64:
		return "double"
	case reflect.Float32:
		return "float"
	case reflect.Bool:
		return "bool"
	case reflect.String:
		return "string"
	}
	return t.String()
}
