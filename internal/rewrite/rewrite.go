// Package rewrite turns session-variable references in an expanded line
// into slot-lookup expressions against the persistent environment,
// inserting a cast inferred from the variable's last known runtime type
// so member access works without a declared type at each use site.
package rewrite

import (
	"strings"

	"github.com/itsmostafa/fiddle/internal/scan"
)

// Mode selects how session variables are addressed in input text.
type Mode int

const (
	// Sigil mode requires a leading '$' on every session variable.
	Sigil Mode = iota
	// Declared mode treats bare identifiers as session variables once
	// they have been declared with a recognized declaration keyword.
	Declared
)

// Dialect supplies the backend's textual forms for slot access. Lookup
// must produce an assignable expression; Cast wraps a lookup with the
// inferred type.
type Dialect struct {
	Lookup func(name string) string
	Cast   func(typeName, lookup string) string
}

// Generic is the dialect used when no backend is in play (and in the
// generated-source display): a C-style cast around an index lookup.
var Generic = Dialect{
	Lookup: func(name string) string { return `__env["` + name + `"]` },
	Cast: func(typeName, lookup string) string {
		return "((" + typeName + ")(" + lookup + "))"
	},
}

// TypeOf reports the display name of a session variable's last known
// runtime type, when known.
type TypeOf func(name string) (string, bool)

// declKeywords always introduce a declaration in declared mode; type
// names recognised by the resolver do too.
var declKeywords = map[string]bool{
	"var":   true,
	"let":   true,
	"const": true,
}

// Rewriter holds the per-session addressing state.
type Rewriter struct {
	mode     Mode
	dialect  Dialect
	declared map[string]bool
	isType   func(token string) bool
}

// New returns a sigil-mode rewriter using the given dialect.
func New(dialect Dialect) *Rewriter {
	return &Rewriter{
		dialect:  dialect,
		declared: make(map[string]bool),
		isType:   func(string) bool { return false },
	}
}

// SetTypeCheck installs the resolver hook used to recognise type-name
// declaration keywords in declared mode.
func (r *Rewriter) SetTypeCheck(f func(string) bool) {
	if f != nil {
		r.isType = f
	}
}

// SetMode switches the addressing mode.
func (r *Rewriter) SetMode(m Mode) { r.mode = m }

// Mode returns the current addressing mode.
func (r *Rewriter) Mode() Mode { return r.mode }

// Declare records name as a session variable for declared mode.
func (r *Rewriter) Declare(name string) { r.declared[name] = true }

// IsDeclared reports whether name was declared in this session.
func (r *Rewriter) IsDeclared(name string) bool { return r.declared[name] }

// match is one qualifying symbol occurrence. kwStart/kwEnd delimit the
// declaration keyword to strip, or -1 when there is none.
type match struct {
	start, end int
	name       string
	kwStart    int
	kwEnd      int
}

// Rewrite substitutes every qualifying session-variable occurrence.
// Matches are processed rightmost first so earlier replacements never
// shift the indices of pending ones; occurrences inside string literals
// are inert.
func (r *Rewriter) Rewrite(line string, typeOf TypeOf) string {
	var matches []match
	if r.mode == Sigil {
		matches = r.sigilMatches(line)
	} else {
		matches = r.declaredMatches(line)
	}

	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if insideString(line, m.start, m.end) {
			continue
		}
		lookup := r.dialect.Lookup(m.name)
		repl := lookup
		if !isAssignTarget(line, m.end) {
			if tn, ok := typeOf(m.name); ok {
				repl = r.dialect.Cast(tn, lookup)
			}
		}
		line = line[:m.start] + repl + line[m.end:]
		if m.kwStart >= 0 {
			line = line[:m.kwStart] + line[m.kwEnd:]
		}
	}
	return line
}

// sigilMatches finds every '$name' occurrence left to right.
func (r *Rewriter) sigilMatches(line string) []match {
	var out []match
	for i := 0; i < len(line); i++ {
		if line[i] != '$' {
			continue
		}
		end := scan.ScanIdent(line, i+1)
		if end == i+1 {
			continue
		}
		out = append(out, match{start: i, end: end, name: line[i+1 : end], kwStart: -1})
		i = end - 1
	}
	return out
}

// declaredMatches finds bare identifiers that are either already
// declared or introduced by a declaration keyword in this line. An
// identifier reached through '.' is a member access, not a variable.
func (r *Rewriter) declaredMatches(line string) []match {
	var out []match
	prevTok := ""
	prevEnd := -1
	prevStart := -1
	for i := 0; i < len(line); i++ {
		c := rune(line[i])
		if !scan.IsIdentStart(c) || (i > 0 && scan.IsIdentPart(rune(line[i-1]))) {
			continue
		}
		end := scan.ScanIdent(line, i)
		tok := line[i:end]

		memberAccess := i > 0 && line[i-1] == '.'
		// "type name(" is a function head, not a declaration.
		funcHead := end < len(line) && line[end] == '('
		declKw := !memberAccess && !funcHead && prevEnd >= 0 &&
			adjacent(line, prevEnd, i) &&
			(declKeywords[prevTok] || r.isType(prevTok))

		switch {
		case memberAccess:
			// inert
		case declKw:
			r.declared[tok] = true
			out = append(out, match{start: i, end: end, name: tok, kwStart: prevStart, kwEnd: i})
		case r.declared[tok]:
			out = append(out, match{start: i, end: end, name: tok, kwStart: -1})
		}

		prevTok, prevStart, prevEnd = tok, i, end
		i = end - 1
	}
	return out
}

// adjacent reports whether only horizontal space separates two offsets.
func adjacent(line string, from, to int) bool {
	return strings.TrimLeft(line[from:to], " \t") == ""
}

// isAssignTarget reports whether the text after end makes this
// occurrence the left side of an assignment: plain '=' (but not '=='),
// a compound operator like '+=', or a shift assignment. '<=' and '>='
// are comparisons, not assignments.
func isAssignTarget(line string, end int) bool {
	j := end
	for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
		j++
	}
	rest := line[j:]
	switch {
	case strings.HasPrefix(rest, "=="):
		return false
	case strings.HasPrefix(rest, "="):
		return true
	case strings.HasPrefix(rest, "<<=") || strings.HasPrefix(rest, ">>="):
		return true
	}
	return len(rest) >= 2 && rest[1] == '=' &&
		strings.IndexByte("+-*/%&|^", rest[0]) >= 0
}

// insideString reports whether [start,end) is fully enclosed in string
// literal content: an odd number of quote boundaries on both sides.
func insideString(line string, start, end int) bool {
	return scan.QuoteParity(line, start) && tailParity(line, end)
}

// tailParity counts unescaped quotes from end to the end of line.
func tailParity(line string, end int) bool {
	odd := false
	for j := end; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case '"':
			odd = !odd
		}
	}
	return odd
}
