// Package backend provides the real compiler collaborators: a goja
// (JavaScript) toolchain and a tengo toolchain. Both satisfy the
// compile.Compiler contract so the engine never depends on either
// directly.
package backend

import (
	"fmt"
	"strings"

	"github.com/itsmostafa/fiddle/internal/compile"
)

// WriteFunc receives text produced by the unit under execution, e.g.
// from the injected print builtin.
type WriteFunc func(s string)

// Select returns the named toolchain. The empty name selects goja.
func Select(name string, write WriteFunc) (compile.Compiler, error) {
	switch name {
	case "", "goja", "js":
		return NewGoja(write), nil
	case "tengo":
		return NewTengo(write), nil
	}
	return nil, fmt.Errorf("unknown engine %q (want goja or tengo)", name)
}

// compileDiagnostics wraps a compile-time error from either engine.
// Parse failures are classed VoidValue: when the expression framing of
// a statement fragment fails to parse, that failure is plausibly only
// because the fragment yields no value, and the pipeline should retry.
func compileDiagnostics(err error) []compile.Diagnostic {
	return []compile.Diagnostic{{
		Message: err.Error(),
		Class:   compile.VoidValue,
	}}
}

// errorKind splits an engine exception rendering like
// "TypeError: x is not defined" into its kind and message.
func errorKind(msg string) (string, string) {
	if i := strings.Index(msg, ":"); i > 0 && !strings.ContainsAny(msg[:i], " \t") {
		return msg[:i], strings.TrimSpace(msg[i+1:])
	}
	return "Exception", msg
}

// normalizeInts folds engine-native int64 values that fit into int, so
// the reporter displays "(int)" the way the session means it.
func normalizeInts(m map[string]any) {
	for k, v := range m {
		if n, ok := v.(int64); ok && int64(int(n)) == n {
			m[k] = int(n)
		}
	}
}

// body returns the brace-delimited body of a function fragment.
func body(fragment string) string {
	if i := strings.Index(fragment, "{"); i >= 0 {
		return fragment[i:]
	}
	return "{}"
}
