// Package meta lists and describes the public members of session
// values and resolved types, for completion and debugging.
package meta

import (
	"reflect"
	"sort"
	"strings"

	"github.com/itsmostafa/fiddle/internal/types"
)

// Service answers member queries. It remembers the last subject so a
// follow-up query without an explicit subject reuses it; the memory is
// per-service state, never global.
type Service struct {
	lastType   reflect.Type
	lastStatic bool
}

// New returns an empty introspection service.
func New() *Service {
	return &Service{}
}

// Remembered reports whether a previous query established a subject.
func (s *Service) Remembered() bool { return s.lastType != nil }

// subjectType normalises the three accepted subject shapes: a runtime
// value (instance members), a resolved descriptor or bare reflect.Type
// (type-level members), or nil (reuse the previous subject).
func (s *Service) subjectType(subject any) (reflect.Type, bool, bool) {
	switch v := subject.(type) {
	case nil:
		if s.lastType == nil {
			return nil, false, false
		}
		return s.lastType, s.lastStatic, true
	case *types.Descriptor:
		return v.Type, true, true
	case reflect.Type:
		return v, true, true
	default:
		return reflect.TypeOf(subject), false, true
	}
}

// ListMembers returns the public member names of the subject, accessor
// prefixes stripped, case-insensitively sorted with the original order
// as tie-break, consecutive duplicates removed, optionally filtered by
// pattern against both the normalized and the original name.
func (s *Service) ListMembers(subject any, pattern string) []string {
	t, static, ok := s.subjectType(subject)
	if !ok || t == nil {
		return nil
	}
	s.lastType, s.lastStatic = t, static

	type member struct{ name, original string }
	var members []member
	add := func(original string) {
		members = append(members, member{name: bareName(original), original: original})
	}

	for _, m := range methodSet(t) {
		add(m.Name)
	}
	for _, f := range fieldSet(t) {
		add(f.Name)
	}

	if pattern != "" {
		kept := members[:0]
		for _, m := range members {
			if containsFold(m.name, pattern) || containsFold(m.original, pattern) {
				kept = append(kept, m)
			}
		}
		members = kept
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, b := strings.ToLower(members[i].name), strings.ToLower(members[j].name)
		if a != b {
			return a < b
		}
		return false
	})

	var out []string
	for _, m := range members {
		if len(out) > 0 && out[len(out)-1] == m.name {
			continue
		}
		out = append(out, m.name)
	}
	return out
}

// Describe renders the full signature of one member, annotated with
// "static" and "virtual" qualifiers when applicable.
func (s *Service) Describe(subject any, name string) (string, bool) {
	t, static, ok := s.subjectType(subject)
	if !ok || t == nil {
		return "", false
	}
	s.lastType, s.lastStatic = t, static

	for _, m := range methodSet(t) {
		if m.Name == name || bareName(m.Name) == name {
			return renderMethod(t, m, static), true
		}
	}
	for _, f := range fieldSet(t) {
		if f.Name == name {
			sig := f.Name + " " + f.Type.String()
			if static {
				sig = "static " + sig
			}
			return sig, true
		}
	}
	return "", false
}

// methodSet returns the exported methods of t, including
// pointer-receiver methods for addressable value subjects.
func methodSet(t reflect.Type) []reflect.Method {
	seen := make(map[string]bool)
	var out []reflect.Method
	collect := func(t reflect.Type) {
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if m.PkgPath != "" || seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	collect(t)
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		collect(reflect.PointerTo(t))
	}
	return out
}

// fieldSet returns the exported fields when the subject is a struct or
// a pointer to one.
func fieldSet(t reflect.Type) []reflect.StructField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath == "" {
			out = append(out, f)
		}
	}
	return out
}

// renderMethod formats a method signature without its receiver.
func renderMethod(t reflect.Type, m reflect.Method, static bool) string {
	ft := m.Type
	skip := 0
	if t.Kind() != reflect.Interface {
		skip = 1 // receiver
	}
	var in, out []string
	for i := skip; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i).String())
	}
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i).String())
	}
	sig := m.Name + "(" + strings.Join(in, ", ") + ")"
	switch len(out) {
	case 0:
	case 1:
		sig += " " + out[0]
	default:
		sig += " (" + strings.Join(out, ", ") + ")"
	}
	if t.Kind() == reflect.Interface {
		sig = "virtual " + sig
	}
	if static {
		sig = "static " + sig
	}
	return sig
}

// bareName strips a Get/Set accessor prefix, mapping both accessors of
// a property onto the bare property name.
func bareName(name string) string {
	for _, prefix := range []string{"Get", "Set"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if ok && rest != "" && rest[0] >= 'A' && rest[0] <= 'Z' {
			return rest
		}
	}
	return name
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
