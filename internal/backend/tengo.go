package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"

	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
)

// maxAllocs bounds allocations per execution for sandboxing.
const maxAllocs = 1_000_000

// Tengo compiles fragments with the tengo scripting engine. Persisted
// function units are kept as source and prepended to every later
// compilation, so referenced functions are in scope by the time the
// fragment runs.
type Tengo struct {
	write     WriteFunc
	persisted map[string]string
}

// NewTengo returns a tengo toolchain writing print output through
// write.
func NewTengo(write WriteFunc) *Tengo {
	if write == nil {
		write = func(string) {}
	}
	return &Tengo{write: write, persisted: make(map[string]string)}
}

// Dialect mirrors the goja dialect: assignable index lookups on the
// bridged __env map and a host coercion for inferred casts.
func (t *Tengo) Dialect() rewrite.Dialect {
	return rewrite.Dialect{
		Lookup: func(name string) string { return `__env["` + name + `"]` },
		Cast: func(typeName, lookup string) string {
			return `__cast("` + typeName + `", ` + lookup + `)`
		},
	}
}

// Framing implements the source templates for tengo fragments. A
// persisted unit binds the function under an alias derived from the
// unit name, so the invoking macro template never mentions the macro's
// own name.
func (t *Tengo) Framing() compile.Framing {
	return compile.Framing{
		Expression: func(fragment string) string {
			return `__env["` + session.ResultSlot + `"] = (` + fragment + `)`
		},
		Statement: func(fragment string) string { return fragment },
		Function: func(unitName string, decl *scan.FuncDecl, fragment string) string {
			head := decl.Name + " := func(" + strings.Join(decl.Params, ", ") + ") "
			return head + body(fragment) + "\n__fn_" + unitName + " := " + decl.Name
		},
		Invoke: func(unitName string, decl *scan.FuncDecl) string {
			return "__fn_" + unitName + "(" + strings.Join(decl.Params, ", ") + ")"
		},
	}
}

// Compile implements compile.Compiler. The source is validated against
// placeholder bindings now; execution recompiles against the live
// environment because a tengo Compiled is bound to the values added
// before compilation.
func (t *Tengo) Compile(source string, kind compile.OutputKind, name string, refs []string) compile.Result {
	full := t.withReferences(source, refs)

	script := tengo.NewScript([]byte(full))
	script.SetMaxAllocs(maxAllocs)
	if err := t.addHost(script, map[string]any{}, func(string) {}); err != nil {
		return compile.Result{Diagnostics: compileDiagnostics(err)}
	}
	if _, err := script.Compile(); err != nil {
		return compile.Result{Diagnostics: compileDiagnostics(err)}
	}

	if kind == compile.Persisted && name != "" {
		t.persisted[name] = source
	}
	return compile.Result{OK: true, Unit: &tengoUnit{t: t, source: full}}
}

// withReferences prepends the persisted sources named by refs.
func (t *Tengo) withReferences(source string, refs []string) string {
	var b strings.Builder
	for _, ref := range refs {
		if src, ok := t.persisted[ref]; ok {
			b.WriteString(src)
			b.WriteString("\n")
		}
	}
	b.WriteString(source)
	return b.String()
}

// addHost binds the environment bridge and host functions. Entries the
// engine cannot represent are skipped; they survive untouched on the
// Go side.
func (t *Tengo) addHost(script *tengo.Script, env map[string]any, write func(string)) error {
	bridge := make(map[string]any, len(env))
	for k, v := range env {
		if _, err := tengo.FromInterface(v); err == nil {
			bridge[k] = v
		}
	}
	if err := script.Add("__env", bridge); err != nil {
		return fmt.Errorf("bridge environment: %w", err)
	}

	print := &tengo.UserFunction{
		Name: "print",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			parts := make([]string, len(args))
			for i, arg := range args {
				if s, ok := tengo.ToString(arg); ok {
					parts[i] = s
				} else {
					parts[i] = arg.String()
				}
			}
			write(strings.Join(parts, " ") + "\n")
			return tengo.UndefinedValue, nil
		},
	}
	if err := script.Add("print", print); err != nil {
		return fmt.Errorf("set print: %w", err)
	}

	cast := &tengo.UserFunction{
		Name: "__cast",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			typeName, _ := tengo.ToString(args[0])
			return castObject(typeName, args[1]), nil
		},
	}
	if err := script.Add("__cast", cast); err != nil {
		return fmt.Errorf("set __cast: %w", err)
	}
	return nil
}

func castObject(typeName string, o tengo.Object) tengo.Object {
	switch typeName {
	case "int", "int64", "byte", "char":
		if n, ok := tengo.ToInt64(o); ok {
			return &tengo.Int{Value: n}
		}
	case "double", "float":
		if f, ok := tengo.ToFloat64(o); ok {
			return &tengo.Float{Value: f}
		}
	case "bool":
		if b, ok := tengo.ToBool(o); ok {
			if b {
				return tengo.TrueValue
			}
			return tengo.FalseValue
		}
	case "string":
		if s, ok := tengo.ToString(o); ok {
			return &tengo.String{Value: s}
		}
	}
	return o
}

type tengoUnit struct {
	t      *Tengo
	source string
}

// Execute recompiles the unit against the live environment and runs
// it, then folds the mutated bridge back into the session.
func (u *tengoUnit) Execute(ctx context.Context, env *session.Env) error {
	script := tengo.NewScript([]byte(u.source))
	script.SetMaxAllocs(maxAllocs)
	if err := u.t.addHost(script, env.Snapshot(), u.t.write); err != nil {
		return err
	}

	compiled, err := script.Compile()
	if err != nil {
		kind, msg := errorKind(err.Error())
		return &compile.ExecError{Kind: kind, Message: msg}
	}
	runErr := compiled.RunContext(ctx)

	if v := compiled.Get("__env"); v != nil {
		if m, ok := v.Value().(map[string]any); ok {
			normalizeInts(m)
			env.Absorb(m)
		}
	}
	if runErr != nil {
		kind, msg := errorKind(runErr.Error())
		return &compile.ExecError{Kind: kind, Message: msg}
	}
	return nil
}
