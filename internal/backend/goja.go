package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
)

// Goja compiles fragments with the goja JavaScript engine. Each
// execution runs in a fresh runtime for isolation; session state flows
// through the bridged __env map, and persisted function units are
// replayed into the runtime before the fragment runs.
type Goja struct {
	write     WriteFunc
	persisted map[string]*goja.Program
}

// NewGoja returns a goja toolchain writing print output through write.
func NewGoja(write WriteFunc) *Goja {
	if write == nil {
		write = func(string) {}
	}
	return &Goja{write: write, persisted: make(map[string]*goja.Program)}
}

// Dialect routes slot lookups through the bridged environment object;
// casts become a host coercion call so the inferred type still shapes
// the value JavaScript sees.
func (g *Goja) Dialect() rewrite.Dialect {
	return rewrite.Dialect{
		Lookup: func(name string) string { return `__env["` + name + `"]` },
		Cast: func(typeName, lookup string) string {
			return `__cast("` + typeName + `", ` + lookup + `)`
		},
	}
}

// Framing implements the source templates for JavaScript fragments.
func (g *Goja) Framing() compile.Framing {
	return compile.Framing{
		Expression: func(fragment string) string {
			return `__env["` + session.ResultSlot + `"] = (` + fragment + `);`
		},
		Statement: func(fragment string) string { return fragment },
		Function: func(unitName string, decl *scan.FuncDecl, fragment string) string {
			return "function " + decl.Name + "(" + strings.Join(decl.Params, ", ") + ") " +
				body(fragment)
		},
		Invoke: func(unitName string, decl *scan.FuncDecl) string {
			call := `__invoke("` + unitName + `", "` + decl.Name + `"`
			for _, p := range decl.Params {
				call += ", " + p
			}
			return call + ")"
		},
	}
}

// Compile implements compile.Compiler.
func (g *Goja) Compile(source string, kind compile.OutputKind, name string, refs []string) compile.Result {
	prog, err := goja.Compile("fragment", source, false)
	if err != nil {
		return compile.Result{Diagnostics: compileDiagnostics(err)}
	}
	if kind == compile.Persisted && name != "" {
		g.persisted[name] = prog
	}
	return compile.Result{OK: true, Unit: &gojaUnit{g: g, prog: prog, refs: refs}}
}

type gojaUnit struct {
	g    *Goja
	prog *goja.Program
	refs []string
}

// Execute runs the unit in a fresh runtime bridged to env. Runtime
// exceptions come back as *compile.ExecError; the environment keeps
// whatever mutations happened before the throw.
func (u *gojaUnit) Execute(ctx context.Context, env *session.Env) error {
	vm := goja.New()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("cancelled")
		case <-done:
		}
	}()

	bridge := env.Snapshot()
	if err := vm.Set("__env", bridge); err != nil {
		return fmt.Errorf("bridge environment: %w", err)
	}
	if err := u.setupHost(vm); err != nil {
		return err
	}

	for _, ref := range u.refs {
		prog, ok := u.g.persisted[ref]
		if !ok {
			continue
		}
		if _, err := vm.RunProgram(prog); err != nil {
			return wrapGojaError(err)
		}
	}

	_, err := vm.RunProgram(u.prog)
	normalizeInts(bridge)
	env.Absorb(bridge)
	if err != nil {
		return wrapGojaError(err)
	}
	return nil
}

func (u *gojaUnit) setupHost(vm *goja.Runtime) error {
	print := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		u.g.write(strings.Join(parts, " ") + "\n")
		return goja.Undefined()
	}
	if err := vm.Set("print", print); err != nil {
		return fmt.Errorf("set print: %w", err)
	}

	cast := func(typeName string, v goja.Value) any {
		switch typeName {
		case "int", "int64", "byte", "char":
			return v.ToInteger()
		case "double", "float":
			return v.ToFloat()
		case "bool":
			return v.ToBoolean()
		case "string":
			return v.String()
		}
		return v.Export()
	}
	if err := vm.Set("__cast", cast); err != nil {
		return fmt.Errorf("set __cast: %w", err)
	}

	invoke := func(unit, fname string, args ...goja.Value) (goja.Value, error) {
		fn, ok := goja.AssertFunction(vm.Get(fname))
		if !ok {
			return nil, fmt.Errorf("unit %s exports no callable %s", unit, fname)
		}
		return fn(goja.Undefined(), args...)
	}
	if err := vm.Set("__invoke", invoke); err != nil {
		return fmt.Errorf("set __invoke: %w", err)
	}
	return nil
}

func wrapGojaError(err error) error {
	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		return &compile.ExecError{Kind: "Interrupted", Message: fmt.Sprint(intr.Value())}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		kind, msg := errorKind(ex.Value().String())
		return &compile.ExecError{Kind: kind, Message: msg}
	}
	kind, msg := errorKind(err.Error())
	return &compile.ExecError{Kind: kind, Message: msg}
}
