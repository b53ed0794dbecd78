// Package compile frames ready fragments as compilable source, drives
// the external compiler collaborator, and implements the
// expression-versus-statement retry strategy.
package compile

import (
	"context"

	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
)

// OutputKind tells the compiler how long a unit must live.
type OutputKind int

const (
	// Transient units are in-memory and discardable after execution.
	Transient OutputKind = iota
	// Persisted units are named and loadable by later fragments.
	Persisted
)

// Class buckets a diagnostic for the retry and tie-break rules.
type Class int

const (
	// General is any diagnostic with no special meaning to the retry
	// logic.
	General Class = iota
	// VoidValue marks a void-incompatible assignment: the fragment
	// plausibly yields no value.
	VoidValue
	// Discarded marks the generic "expression result discarded"
	// complaint.
	Discarded
	// Mismatch marks a genuine type mismatch.
	Mismatch
)

// Diagnostic is one structured error record from the compiler.
type Diagnostic struct {
	Message string
	Class   Class
}

// Unit is a compiled, loadable unit executed against the variable
// environment.
type Unit interface {
	Execute(ctx context.Context, env *session.Env) error
}

// Result is the structured outcome of one compiler invocation.
type Result struct {
	OK          bool
	Diagnostics []Diagnostic
	Unit        Unit
}

// Framing supplies the source templates the pipeline wraps fragments
// in. They are backend-owned because the generated syntax is.
type Framing struct {
	// Expression frames fragment so its value is assigned into the
	// reserved result slot.
	Expression func(fragment string) string
	// Statement frames fragment as a bare statement.
	Statement func(fragment string) string
	// Function frames a function fragment as a named persisted unit.
	Function func(unitName string, decl *scan.FuncDecl, fragment string) string
	// Invoke renders the macro template that calls a persisted unit.
	Invoke func(unitName string, decl *scan.FuncDecl) string
}

// Compiler is the injected toolchain collaborator. Implementations
// must never be hard-wired into the pipeline; tests substitute a fake
// returning canned diagnostics.
type Compiler interface {
	// Compile turns generated source text into a loadable unit or a
	// set of diagnostics. name registers a Persisted unit so later
	// compilations can reference it; it is empty for Transient units.
	Compile(source string, kind OutputKind, name string, refs []string) Result
	// Framing returns the source templates for this toolchain.
	Framing() Framing
	// Dialect returns the slot-access forms the rewriter should emit
	// for this toolchain.
	Dialect() rewrite.Dialect
}

// ExecError is a runtime failure raised while a unit executed. Backends
// wrap engine-specific exceptions in it so the reporter can render
// "<kind> was thrown: <message>" uniformly.
type ExecError struct {
	Kind    string
	Message string
}

func (e *ExecError) Error() string {
	return e.Kind + " was thrown: " + e.Message
}

func hasClass(diags []Diagnostic, c Class) bool {
	for _, d := range diags {
		if d.Class == c {
			return true
		}
	}
	return false
}

func onlyClass(diags []Diagnostic, c Class) bool {
	if len(diags) == 0 {
		return false
	}
	for _, d := range diags {
		if d.Class != c {
			return false
		}
	}
	return true
}
