package engine

import (
	"context"
	"strings"

	"github.com/itsmostafa/fiddle/internal/report"
	"github.com/itsmostafa/fiddle/internal/rewrite"
	"github.com/itsmostafa/fiddle/internal/scan"
	"github.com/itsmostafa/fiddle/internal/session"
	"github.com/itsmostafa/fiddle/internal/types"
)

// command dispatches one directive line (the leading marker already
// stripped). Unknown directives produce a short diagnostic and never
// end the session.
func (s *Session) command(ctx context.Context, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		s.console.WriteText("empty directive\n")
		return
	}
	name := body
	rest := ""
	if i := strings.IndexAny(body, " \t("); i >= 0 {
		if body[i] == '(' {
			name, rest = body[:i], body[i:]
		} else {
			name, rest = body[:i], strings.TrimSpace(body[i+1:])
		}
	}

	switch name {
	case "def":
		s.defineMacro(rest)
	case "using":
		if rest == "" {
			s.console.WriteText("usage: #using <namespace>\n")
			return
		}
		s.resolver.AddNamespace(rest)
	case "ref":
		if rest == "" {
			s.console.WriteText("usage: #ref <unit>\n")
			return
		}
		s.pipeline.AddReference(rest)
	case "vars":
		s.listVars()
	case "decl":
		s.toggleDeclared()
	case "code":
		s.showSource = !s.showSource
		if s.showSource {
			s.console.WriteText("showing generated source\n")
		} else {
			s.console.WriteText("hiding generated source\n")
		}
	case "mem":
		s.listMembers(rest)
	case "sig":
		s.describeMember(rest)
	case "quit", "exit":
		s.done = true
	default:
		s.invokeMacro(ctx, name, rest)
	}
}

// defineMacro handles "#def NAME(params) template" and the
// unparameterized "#def NAME template" form.
func (s *Session) defineMacro(body string) {
	end := scan.ScanIdent(body, 0)
	if end == 0 {
		s.console.WriteText("usage: #def NAME(params) template\n")
		return
	}
	name := body[:end]

	var params []string
	rest := body[end:]
	if rest != "" && rest[0] == '(' {
		close, ok := scan.BalancedGroup(rest, 0)
		if !ok {
			s.console.WriteText("unbalanced parentheses in macro definition\n")
			return
		}
		inner := rest[1 : close-1]
		if strings.TrimSpace(inner) != "" {
			for _, p := range scan.SplitTopLevel(inner, ',') {
				params = append(params, strings.TrimSpace(p))
			}
		} else {
			params = []string{}
		}
		rest = rest[close:]
	}

	template := strings.TrimSpace(rest)
	if template == "" {
		s.console.WriteText("usage: #def NAME(params) template\n")
		return
	}
	s.macros.Define(name, template, params)
}

// invokeMacro treats an unrecognized directive keyword as a macro
// invocation: the remainder of the line is split into arguments by
// whitespace, or passed whole when the macro takes exactly one
// parameter.
func (s *Session) invokeMacro(ctx context.Context, name, rest string) {
	entry, ok := s.macros.Lookup(name)
	if !ok {
		s.console.WriteText("unknown directive: #" + name + "\n")
		return
	}
	call := name
	switch {
	case strings.HasPrefix(rest, "("):
		// Already written as a call; pass it through.
		call += rest
	case entry.Params == nil:
	case len(entry.Params) == 1:
		call += "(" + rest + ")"
	default:
		call += "(" + strings.Join(strings.Fields(rest), ", ") + ")"
	}
	s.eval(ctx, call)
}

func (s *Session) toggleDeclared() {
	if s.rewriter.Mode() == rewrite.Declared {
		s.rewriter.SetMode(rewrite.Sigil)
		s.console.WriteText("sigil mode: session variables are written $name\n")
		return
	}
	s.rewriter.SetMode(rewrite.Declared)
	s.console.WriteText("declared mode: declared identifiers are session variables\n")
}

// listVars prints each environment slot with its last known type.
func (s *Session) listVars() {
	budget := s.console.LineWidth()
	if budget <= 0 {
		budget = 80
	}
	for _, name := range s.env.Names() {
		v, _ := s.env.Get(name)
		s.console.WriteText("(" + types.DisplayName(v) + ") " + name + " = " +
			report.Format(v, budget) + "\n")
	}
}

// listMembers answers "#mem [subject] [pattern]". The subject is a type
// name when it resolves, otherwise the last produced value; with no
// subject at all the service falls back to the last type it was asked
// about.
func (s *Session) listMembers(args string) {
	subject, pattern := s.metaSubject(args)
	names := s.meta.ListMembers(subject, pattern)
	if len(names) == 0 {
		s.console.WriteText("no members\n")
		return
	}
	s.console.WriteText(columns(names, s.console.LineWidth()) + "\n")
}

// describeMember answers "#sig <member>" against the same subject rules
// as listMembers.
func (s *Session) describeMember(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		s.console.WriteText("usage: #sig [subject] <member>\n")
		return
	}
	subject := s.lastSubject()
	name := fields[0]
	if len(fields) > 1 {
		if d, ok := s.resolver.Resolve(fields[0]); ok {
			subject = d
			name = fields[1]
		}
	}
	sig, ok := s.meta.Describe(subject, name)
	if !ok {
		s.console.WriteText("unknown member: " + name + "\n")
		return
	}
	s.console.WriteText(sig + "\n")
}

func (s *Session) metaSubject(args string) (any, string) {
	fields := strings.Fields(args)
	switch len(fields) {
	case 0:
		return s.lastSubject(), ""
	case 1:
		if d, ok := s.resolver.Resolve(fields[0]); ok {
			return d, ""
		}
		return s.lastSubject(), fields[0]
	default:
		if d, ok := s.resolver.Resolve(fields[0]); ok {
			return d, fields[1]
		}
		return s.lastSubject(), fields[0]
	}
}

// lastSubject picks the implicit query subject: once a query has
// established one, the remembered subject wins (returning nil lets the
// service reuse it); before that, the last produced value serves.
func (s *Session) lastSubject() any {
	if s.meta.Remembered() {
		return nil
	}
	return s.env.Result()
}

// Complete suggests completions for a partial token. It may be called
// from the console's input thread concurrently with a running resolve;
// the type cache lock makes that safe.
func (s *Session) Complete(prefix string) []string {
	if base, memberPrefix, ok := strings.Cut(prefix, "."); ok {
		var subject any
		if d, found := s.resolver.Resolve(strings.TrimPrefix(base, "$")); found {
			subject = d
		} else if v, found := s.env.Get(strings.TrimPrefix(base, "$")); found && v != nil {
			subject = v
		} else {
			return nil
		}
		var out []string
		for _, m := range s.meta.ListMembers(subject, "") {
			if strings.HasPrefix(m, memberPrefix) {
				out = append(out, base+"."+m)
			}
		}
		return out
	}

	var out []string
	bare := strings.TrimPrefix(prefix, "$")
	for _, name := range s.macros.Names() {
		if strings.HasPrefix(name, bare) {
			out = append(out, name)
		}
	}
	for _, name := range s.env.Names() {
		if name == session.ResultSlot || name == session.SessionSlot {
			continue
		}
		if strings.HasPrefix(name, bare) {
			out = append(out, name)
		}
	}
	return out
}

// columns lays names out in rows bounded by the console width.
func columns(names []string, width int) string {
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	lineLen := 0
	for i, n := range names {
		if i > 0 {
			if lineLen+2+len(n) > width {
				b.WriteString("\n")
				lineLen = 0
			} else {
				b.WriteString("  ")
				lineLen += 2
			}
		}
		b.WriteString(n)
		lineLen += len(n)
	}
	return b.String()
}
