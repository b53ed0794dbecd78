package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/itsmostafa/fiddle/internal/backend"
	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
)

// fakeConsole feeds scripted lines and records everything written.
type fakeConsole struct {
	out   strings.Builder
	lines []string
}

func (c *fakeConsole) WriteText(s string) { c.out.WriteString(s) }

func (c *fakeConsole) RequestLine(cb func(line string, ok bool)) {
	if len(c.lines) == 0 {
		cb("", false)
		return
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	cb(line, true)
}

func (c *fakeConsole) LineWidth() int    { return 80 }
func (c *fakeConsole) MaxLineCount() int { return 20 }

type scriptUnit func(env *session.Env)

func (u scriptUnit) Execute(ctx context.Context, env *session.Env) error {
	u(env)
	return nil
}

// scriptCompiler delegates every compilation to a per-test handler.
type scriptCompiler struct {
	handle func(source string, kind compile.OutputKind) compile.Result
	calls  []string
	kinds  []compile.OutputKind
}

func (c *scriptCompiler) Compile(source string, kind compile.OutputKind, name string, refs []string) compile.Result {
	c.calls = append(c.calls, source)
	c.kinds = append(c.kinds, kind)
	return c.handle(source, kind)
}

func (c *scriptCompiler) Dialect() rewrite.Dialect { return rewrite.Generic }

func (c *scriptCompiler) Framing() compile.Framing {
	return compile.Framing{
		Expression: func(fragment string) string { return "RES=(" + fragment + ");" },
		Statement:  func(fragment string) string { return fragment },
		Function: func(unitName string, decl *scan.FuncDecl, fragment string) string {
			return "FUNC " + unitName + " " + fragment
		},
		Invoke: func(unitName string, decl *scan.FuncDecl) string {
			inv := `__invoke("` + unitName + `", "` + decl.Name + `"`
			for _, p := range decl.Params {
				inv += ", " + p
			}
			return inv + ")"
		},
	}
}

func run(fn func(env *session.Env)) compile.Result {
	return compile.Result{OK: true, Unit: scriptUnit(fn)}
}

func silent() compile.Result {
	return run(func(*session.Env) {})
}

func voidFail() compile.Result {
	return compile.Result{Diagnostics: []compile.Diagnostic{
		{Message: "cannot assign void", Class: compile.VoidValue},
	}}
}

func newSession(handle func(source string, kind compile.OutputKind) compile.Result, opts Options) (*Session, *fakeConsole, *scriptCompiler) {
	console := &fakeConsole{}
	comp := &scriptCompiler{handle: handle}
	return New(console, comp, opts), console, comp
}

func TestEvalSimpleExpression(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		if source == "RES=(2+2);" {
			return run(func(env *session.Env) { env.SetResult(4) })
		}
		t.Fatalf("unexpected compile of %q", source)
		return compile.Result{}
	}, Options{})

	s.HandleLine(context.Background(), "2+2")
	if got := console.out.String(); got != "(int) 4\n" {
		t.Errorf("output = %q", got)
	}
}

func TestEvalSigilVariableRoundTrip(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		switch source {
		case "RES=(int x = 5;);":
			return voidFail()
		case "int x = 5;":
			return run(func(env *session.Env) { env.Set("x", 5) })
		case `RES=(((int)(__env["x"]))*2);`:
			return run(func(env *session.Env) {
				v, _ := env.Get("x")
				env.SetResult(v.(int) * 2)
			})
		}
		t.Fatalf("unexpected compile of %q", source)
		return compile.Result{}
	}, Options{})

	s.HandleLine(context.Background(), "int x = 5;")
	if console.out.Len() != 0 {
		t.Fatalf("declaration produced output %q", console.out.String())
	}
	// x now has a known runtime type, so the rewrite inserts a cast.
	s.HandleLine(context.Background(), "$x*2")
	if got := console.out.String(); got != "(int) 10\n" {
		t.Errorf("output = %q", got)
	}
}

func TestEvalMacroExpansion(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		if source == "RES=(((3+1)*(3+1)));" {
			return run(func(env *session.Env) { env.SetResult(16) })
		}
		t.Fatalf("unexpected compile of %q", source)
		return compile.Result{}
	}, Options{})

	s.HandleLine(context.Background(), "#def SQ(a) ((a)*(a))")
	s.HandleLine(context.Background(), "SQ(3+1)")
	if got := console.out.String(); got != "(int) 16\n" {
		t.Errorf("output = %q", got)
	}
}

func TestEvalMultiLineStatement(t *testing.T) {
	ran := false
	s, console, comp := newSession(func(source string, kind compile.OutputKind) compile.Result {
		if strings.HasPrefix(source, "RES=(") {
			return voidFail()
		}
		return run(func(*session.Env) { ran = true })
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "if (true) {")
	if !s.Pending() {
		t.Fatal("open brace must leave the fragment pending")
	}
	if len(comp.calls) != 0 {
		t.Fatal("compiled before the fragment closed")
	}
	s.HandleLine(ctx, `    print("big");`)
	s.HandleLine(ctx, "}")

	if s.Pending() {
		t.Error("fragment still pending after closing brace")
	}
	if !ran {
		t.Error("statement never executed")
	}
	if console.out.Len() != 0 {
		t.Errorf("statement produced output %q", console.out.String())
	}
	if len(comp.calls) != 2 {
		t.Errorf("expected expression attempt then statement retry, got %v", comp.calls)
	}
	want := "if (true) {\n    print(\"big\");\n}"
	if comp.calls[1] != want {
		t.Errorf("statement source = %q, want %q", comp.calls[1], want)
	}
}

func TestFunctionDefinitionAndBareInvocation(t *testing.T) {
	invoked := false
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		switch {
		case kind == compile.Persisted:
			return silent()
		case strings.HasPrefix(source, `RES=(__invoke(`):
			return voidFail()
		case strings.HasPrefix(source, `__invoke(`):
			return run(func(*session.Env) { invoked = true })
		}
		t.Fatalf("unexpected compile of %q", source)
		return compile.Result{}
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "void f(){ }")
	if console.out.Len() != 0 {
		t.Fatalf("function definition produced output %q", console.out.String())
	}
	if _, ok := s.Macros().Lookup("f"); !ok {
		t.Fatal("function name not promoted to a macro")
	}

	// A parameterless function runs from a bare mention of its name.
	s.HandleLine(ctx, "#f")
	if !invoked {
		t.Error("bare invocation did not execute the unit")
	}
	if console.out.Len() != 0 {
		t.Errorf("void invocation produced output %q", console.out.String())
	}
}

func TestFunctionRedefinitionRecompilesAsFunction(t *testing.T) {
	s, console, comp := newSession(func(source string, kind compile.OutputKind) compile.Result {
		if kind != compile.Persisted {
			t.Errorf("compiled %q at kind %v, want a persisted function compile", source, kind)
		}
		return silent()
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "void f(){ }")
	first, ok := s.Macros().Lookup("f")
	if !ok {
		t.Fatal("first definition registered no macro")
	}

	// The invoke macro for f must not expand inside f's own
	// redefinition.
	s.HandleLine(ctx, "void f(){ }")
	if console.out.Len() != 0 {
		t.Fatalf("redefinition produced output %q", console.out.String())
	}
	if len(comp.kinds) != 2 {
		t.Fatalf("expected two persisted compiles, got %v", comp.calls)
	}
	second, ok := s.Macros().Lookup("f")
	if !ok {
		t.Fatal("redefinition left no macro")
	}
	if second.Template == first.Template {
		t.Error("redefinition must route the macro to a fresh unit")
	}
}

func TestVoidInvocationDisplaysNothing(t *testing.T) {
	console := &fakeConsole{}
	comp := backend.NewGoja(console.WriteText)
	s := New(console, comp, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "void f(){ }")
	s.HandleLine(ctx, "#f")
	if console.out.Len() != 0 {
		t.Errorf("bare void invocation displayed %q, want nothing", console.out.String())
	}
}

func TestCompileFailureShowsDiagnosticsAndSource(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		return compile.Result{Diagnostics: []compile.Diagnostic{
			{Message: "unexpected token", Class: compile.General},
		}}
	}, Options{})

	s.HandleLine(context.Background(), "1 +")
	got := console.out.String()
	if !strings.Contains(got, "unexpected token") {
		t.Errorf("diagnostic missing from %q", got)
	}
	if !strings.Contains(got, "RES=(1 +);") {
		t.Errorf("generated source missing from %q", got)
	}
}

func TestUsingLineRegistersNamespace(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		return silent()
	}, Options{})

	s.HandleLine(context.Background(), "using strings;")
	if console.out.Len() != 0 {
		t.Errorf("using produced output %q", console.out.String())
	}
	if _, ok := s.Resolver().Resolve("Builder"); !ok {
		t.Error("short name unresolved after using declaration")
	}
}

func TestQuitDirectiveEndsSession(t *testing.T) {
	s, _, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})

	s.HandleLine(context.Background(), "#quit")
	if !s.Done() {
		t.Error("session not done after #quit")
	}
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	console := &fakeConsole{lines: []string{"2+2", "#quit", "never read"}}
	comp := &scriptCompiler{handle: func(source string, kind compile.OutputKind) compile.Result {
		return run(func(env *session.Env) { env.SetResult(4) })
	}}
	s := New(console, comp, Options{})

	s.Run(context.Background())
	if !s.Done() {
		t.Error("run returned before quit")
	}
	if len(console.lines) != 1 {
		t.Errorf("read past the quit directive: %v remain", console.lines)
	}
}

func TestDeclToggle(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		if source == `RES=(__env["n"] = 1);` {
			return run(func(env *session.Env) {
				env.Set("n", 1)
				env.SetResult(1)
			})
		}
		t.Fatalf("unexpected compile of %q", source)
		return compile.Result{}
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "#decl")
	console.out.Reset()
	s.HandleLine(ctx, "let n = 1")
	if got := console.out.String(); got != "(int) 1\n" {
		t.Errorf("output = %q", got)
	}
}

func TestVarsListing(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		return run(func(env *session.Env) {
			env.Set("greeting", "hi")
			env.SetResult("hi")
		})
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, `"hi"`)
	console.out.Reset()
	s.HandleLine(ctx, "#vars")
	got := console.out.String()
	if !strings.Contains(got, `(string) greeting = "hi"`) {
		t.Errorf("variable missing from listing:\n%s", got)
	}
	if !strings.Contains(got, `(string) _ = "hi"`) {
		t.Errorf("result slot missing from listing:\n%s", got)
	}
}

func TestMemDirective(t *testing.T) {
	s, console, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})

	s.HandleLine(context.Background(), "#mem strings.Builder")
	got := console.out.String()
	for _, want := range []string{"Len", "WriteString"} {
		if !strings.Contains(got, want) {
			t.Errorf("member %s missing from %q", want, got)
		}
	}
}

func TestMemRemembersQueriedSubject(t *testing.T) {
	s, console, _ := newSession(func(source string, kind compile.OutputKind) compile.Result {
		return run(func(env *session.Env) { env.SetResult(4) })
	}, Options{})

	ctx := context.Background()
	s.HandleLine(ctx, "#mem strings.Builder")
	s.HandleLine(ctx, "2+2")
	console.out.Reset()

	// The remembered subject outlives a newer result value.
	s.HandleLine(ctx, "#mem Write")
	got := console.out.String()
	if !strings.Contains(got, "WriteString") {
		t.Errorf("bare query lost the remembered subject: %q", got)
	}
}

func TestSigDirective(t *testing.T) {
	s, console, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})

	s.HandleLine(context.Background(), "#sig strings.Builder Len")
	if got := console.out.String(); got != "static Len() int\n" {
		t.Errorf("output = %q", got)
	}
}

func TestUnknownDirective(t *testing.T) {
	s, console, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})

	s.HandleLine(context.Background(), "#frobnicate")
	if got := console.out.String(); got != "unknown directive: #frobnicate\n" {
		t.Errorf("output = %q", got)
	}
}

func TestCompleteDottedMember(t *testing.T) {
	s, _, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})
	s.Env().Set("d", 5*time.Second)

	got := s.Complete("d.S")
	want := []string{"d.Seconds", "d.String"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteBareNames(t *testing.T) {
	s, _, _ := newSession(func(string, compile.OutputKind) compile.Result {
		return silent()
	}, Options{})
	s.Env().Set("counter", 1)
	s.Macros().Define("count3", "(3)", nil)

	got := s.Complete("coun")
	want := []string{"count3", "counter"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
}
