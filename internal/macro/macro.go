// Package macro implements the textual substitution pass applied to
// input lines before symbol rewriting. Macros are either verbatim
// replacements or parameterized templates with C-preprocessor style
// stringize (#param) and paste (##param) markers.
package macro

import (
	"errors"
	"strings"

	"github.com/itsmostafa/fiddle/internal/scan"
)

// ErrUnbalanced is the fixed diagnostic for a macro call whose argument
// list never closes. It is reported to the console, never fatal.
var ErrUnbalanced = errors.New("unbalanced parentheses in macro call")

// ErrArgCount is reported when a parameterized macro is invoked with the
// wrong number of arguments.
var ErrArgCount = errors.New("wrong number of macro arguments")

// Entry is one substitution rule. Params == nil means the macro is
// unparameterized and substitutes verbatim wherever its name appears as
// a bare identifier.
type Entry struct {
	Name     string
	Template string
	Params   []string
}

// Table maps macro names to their substitution rules.
type Table struct {
	entries map[string]*Entry
}

// NewTable returns an empty macro table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Define registers a macro, overwriting any previous rule with the same
// name.
func (t *Table) Define(name, template string, params []string) {
	t.entries[name] = &Entry{Name: name, Template: template, Params: params}
}

// Lookup returns the entry for name, if registered.
func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Remove drops a macro; used when a same-named function is redefined.
func (t *Table) Remove(name string) {
	delete(t.entries, name)
}

// Names returns the registered macro names in no particular order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	return names
}

// Expand rewrites line by substituting every registered macro. Scanning
// is left to right; after a substitution it resumes from the start of
// the inserted text, so macros may expand recursively. Self-referential
// macros are a user error and are not guarded here.
func (t *Table) Expand(line string) (string, error) {
	i := 0
	for i < len(line) {
		if !scan.IsIdentStart(rune(line[i])) || (i > 0 && scan.IsIdentPart(rune(line[i-1]))) {
			i++
			continue
		}
		end := scan.ScanIdent(line, i)
		entry, ok := t.entries[line[i:end]]
		if !ok || scan.QuoteParity(line, i) {
			i = end
			continue
		}

		if entry.Params == nil {
			line = line[:i] + entry.Template + line[end:]
			continue
		}

		if end >= len(line) || line[end] != '(' {
			// A parameterized macro name without an argument list is
			// left alone.
			i = end
			continue
		}
		close, ok := scan.BalancedGroup(line, end)
		if !ok {
			return "", ErrUnbalanced
		}
		args := scan.SplitTopLevel(line[end+1:close-1], ',')
		for k := range args {
			args[k] = strings.TrimSpace(args[k])
		}
		if len(args) == 1 && args[0] == "" {
			args = nil
		}
		if len(args) != len(entry.Params) {
			return "", ErrArgCount
		}
		line = line[:i] + substitute(entry, args) + line[close:]
	}
	return line, nil
}

// substitute fills a parameterized template with actual arguments. A
// single '#' before a formal wraps the actual in quotes, a doubled '##'
// suppresses the wrapping; marker characters never survive into the
// result.
func substitute(entry *Entry, args []string) string {
	idx := make(map[string]int, len(entry.Params))
	for k, p := range entry.Params {
		idx[p] = k
	}

	var b strings.Builder
	tpl := entry.Template
	for i := 0; i < len(tpl); {
		if tpl[i] == '#' {
			j := i
			for j < len(tpl) && tpl[j] == '#' {
				j++
			}
			markers := j - i
			end := scan.ScanIdent(tpl, j)
			if end > j {
				if k, ok := idx[tpl[j:end]]; ok {
					if markers == 1 {
						b.WriteByte('"')
						b.WriteString(args[k])
						b.WriteByte('"')
					} else {
						b.WriteString(args[k])
					}
					i = end
					continue
				}
				b.WriteString(tpl[j:end])
				i = end
				continue
			}
			i = j
			continue
		}
		if scan.IsIdentStart(rune(tpl[i])) && (i == 0 || !scan.IsIdentPart(rune(tpl[i-1]))) {
			end := scan.ScanIdent(tpl, i)
			if k, ok := idx[tpl[i:end]]; ok {
				b.WriteString(args[k])
			} else {
				b.WriteString(tpl[i:end])
			}
			i = end
			continue
		}
		b.WriteByte(tpl[i])
		i++
	}
	return b.String()
}
