// Package engine wires the interactive evaluation pipeline together:
// line accumulation, macro expansion, symbol rewriting, compilation and
// result reporting, driven one fragment at a time.
package engine

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/macro"
	"github.com/itsmostafa/fiddle/internal/meta"
	"github.com/itsmostafa/fiddle/internal/report"
	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
	"github.com/itsmostafa/fiddle/internal/types"
)

// Console is the host UI collaborator. WriteText is append-only.
// RequestLine registers a one-shot callback for the next complete input
// line; registering while a callback is outstanding must cancel the old
// one by invoking it with ok=false. The wait for input is unbounded.
type Console interface {
	WriteText(s string)
	RequestLine(callback func(line string, ok bool))
	LineWidth() int
	MaxLineCount() int
}

// Options configures a new session.
type Options struct {
	// Declared starts the session in declared addressing mode instead
	// of sigil mode.
	Declared bool
	// ShowSource echoes the generated source before each compile.
	ShowSource bool
	// Fallback resolves environment misses, e.g. against a running
	// program's live objects.
	Fallback session.Fallback
}

// Session is one interactive evaluation session. It is single-threaded:
// exactly one fragment is accumulated, rewritten, compiled and executed
// at a time.
type Session struct {
	ID string

	console  Console
	acc      scan.Accumulator
	macros   *macro.Table
	env      *session.Env
	registry *types.Registry
	resolver *types.Resolver
	rewriter *rewrite.Rewriter
	pipeline *compile.Pipeline
	reporter *report.Reporter
	meta     *meta.Service

	showSource bool
	done       bool
}

// New assembles a session around the injected console and compiler
// collaborators.
func New(console Console, comp compile.Compiler, opts Options) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		console:    console,
		macros:     macro.NewTable(),
		env:        session.New(),
		registry:   types.NewRegistry(),
		showSource: opts.ShowSource,
	}
	s.registry.Register("std", standardTypes())
	s.resolver = types.NewResolver(s.registry)
	s.rewriter = rewrite.New(comp.Dialect())
	s.rewriter.SetTypeCheck(func(tok string) bool {
		_, ok := s.resolver.Resolve(tok)
		return ok
	})
	if opts.Declared {
		s.rewriter.SetMode(rewrite.Declared)
	}
	s.pipeline = compile.New(comp, s.macros)
	s.reporter = report.New(console)
	s.meta = meta.New()

	s.env.Set(session.SessionSlot, s.ID)
	s.env.SetFallback(opts.Fallback)
	return s
}

// Env exposes the variable environment, mainly for embedding hosts.
func (s *Session) Env() *session.Env { return s.env }

// Resolver exposes the type resolver for hosts that register units.
func (s *Session) Resolver() *types.Resolver { return s.resolver }

// Registry exposes the loaded-unit registry.
func (s *Session) Registry() *types.Registry { return s.registry }

// Macros exposes the macro table.
func (s *Session) Macros() *macro.Table { return s.macros }

// Pending reports whether a partial fragment is buffered; hosts use it
// to choose between the fresh and continuation prompts.
func (s *Session) Pending() bool { return s.acc.Pending() }

// Done reports whether a quit directive ended the session.
func (s *Session) Done() bool { return s.done }

// Run reads lines from the console until input ends or the session is
// told to quit. Each read registers exactly one pending callback.
func (s *Session) Run(ctx context.Context) {
	for !s.done {
		line, ok := s.readLine()
		if !ok {
			return
		}
		s.HandleLine(ctx, line)
	}
}

type lineMsg struct {
	line string
	ok   bool
}

func (s *Session) readLine() (string, bool) {
	ch := make(chan lineMsg, 1)
	s.console.RequestLine(func(line string, ok bool) {
		ch <- lineMsg{line: line, ok: ok}
	})
	m := <-ch
	return m.line, m.ok
}

// HandleLine feeds one physical line through the accumulator and, when
// a fragment becomes ready, evaluates it. Every failure is recovered
// here and turned into console output.
func (s *Session) HandleLine(ctx context.Context, line string) {
	ev, payload := s.acc.Feed(line)
	switch ev {
	case scan.Using:
		s.resolver.AddNamespace(payload)
	case scan.Command:
		s.command(ctx, payload)
	case scan.Ready:
		s.eval(ctx, payload)
	}
}

// eval runs one ready fragment through macro expansion, symbol
// rewriting, compilation and execution.
func (s *Session) eval(ctx context.Context, fragment string) {
	if decl, ok := scan.MatchFuncDecl(fragment); ok {
		// A redefinition must not expand under its own invoke macro, or
		// the fragment would reach the compiler as a garbled expression
		// instead of a function.
		s.macros.Remove(decl.Name)
	}
	expanded, err := s.macros.Expand(fragment)
	if err != nil {
		s.console.WriteText(err.Error() + "\n")
		return
	}
	rewritten := s.rewriter.Rewrite(expanded, s.typeOf)

	out := s.pipeline.Compile(rewritten)
	if s.showSource {
		s.console.WriteText(out.Source + "\n")
	}
	if len(out.Diagnostics) > 0 {
		for _, d := range out.Diagnostics {
			s.console.WriteText(d.Message + "\n")
		}
		if !s.showSource {
			s.console.WriteText(out.Source + "\n")
		}
		return
	}
	if out.FuncName != "" {
		// Function fragments only define; nothing runs or displays.
		return
	}
	_ = s.reporter.Execute(ctx, out.Unit, s.env, out.HasResult)
}

// typeOf reports the display name of a session variable's last known
// runtime type.
func (s *Session) typeOf(name string) (string, bool) {
	v, ok := s.env.Get(name)
	if !ok || v == nil {
		return "", false
	}
	return types.DisplayName(v), true
}

// standardTypes is the unit of host types every session can resolve
// once the matching namespace is registered.
func standardTypes() map[string]reflect.Type {
	return map[string]reflect.Type{
		"time.Time":        reflect.TypeOf(time.Time{}),
		"time.Duration":    reflect.TypeOf(time.Duration(0)),
		"strings.Builder":  reflect.TypeOf(strings.Builder{}),
		"strings.Replacer": reflect.TypeOf(strings.Replacer{}),
	}
}
