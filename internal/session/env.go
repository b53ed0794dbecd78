// Package session holds the persistent variable environment an
// interactive session evaluates against.
package session

import "sort"

// ResultSlot is the reserved name holding the most recent expression
// result.
const ResultSlot = "_"

// SessionSlot is the reserved name holding a handle to the environment's
// owning session.
const SessionSlot = "session"

// Fallback resolves names missing from the environment, for example by
// searching a running program's live objects. Consulted only on a
// definite miss.
type Fallback func(name string) (any, bool)

// Env is the variable environment for one interactive session. Names
// are case-sensitive and unique; insertion order is irrelevant. Every
// successful execution may mutate it.
type Env struct {
	slots    map[string]any
	fallback Fallback
}

// New returns an environment containing only the reserved slots.
func New() *Env {
	return &Env{slots: map[string]any{
		ResultSlot:  nil,
		SessionSlot: nil,
	}}
}

// SetFallback installs the missing-key resolver hook.
func (e *Env) SetFallback(f Fallback) { e.fallback = f }

// Get returns the value bound to name. A miss is delegated to the
// fallback resolver when one is installed; a fallback hit is not cached
// into the environment.
func (e *Env) Get(name string) (any, bool) {
	if v, ok := e.slots[name]; ok {
		return v, true
	}
	if e.fallback != nil {
		return e.fallback(name)
	}
	return nil, false
}

// Has reports whether name is bound directly, ignoring the fallback.
func (e *Env) Has(name string) bool {
	_, ok := e.slots[name]
	return ok
}

// Set binds name to value, overwriting any previous binding.
func (e *Env) Set(name string, value any) {
	e.slots[name] = value
}

// Remove drops a binding. Reserved slots are cleared, not removed.
func (e *Env) Remove(name string) {
	if name == ResultSlot || name == SessionSlot {
		e.slots[name] = nil
		return
	}
	delete(e.slots, name)
}

// Result returns the value in the reserved result slot.
func (e *Env) Result() any { return e.slots[ResultSlot] }

// SetResult stores value into the reserved result slot.
func (e *Env) SetResult(value any) { e.slots[ResultSlot] = value }

// Names returns all bound names sorted for stable listing.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.slots))
	for n := range e.slots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the slots into a plain map for bridging into an
// embedded runtime. Mutations of the copy are not visible here.
func (e *Env) Snapshot() map[string]any {
	out := make(map[string]any, len(e.slots))
	for k, v := range e.slots {
		out[k] = v
	}
	return out
}

// Absorb writes every binding of m back into the environment; used by
// backends that extract variables after a run.
func (e *Env) Absorb(m map[string]any) {
	for k, v := range m {
		e.slots[k] = v
	}
}
