// Package report executes compiled units against the session
// environment and renders results and runtime failures to the console
// collaborator.
package report

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/session"
	"github.com/itsmostafa/fiddle/internal/types"
)

// Sink is the slice of the console contract the reporter needs.
type Sink interface {
	WriteText(s string)
	LineWidth() int
	MaxLineCount() int
}

// Reporter runs units and reports outcomes. Runtime failures are
// recovered here; nothing propagates past the engine boundary.
type Reporter struct {
	sink Sink
}

// New returns a reporter writing to sink.
func New(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

// Execute runs one unit against env. When hasResult is set the value
// left in the result slot is displayed. The error return reports only
// that execution failed; it has already been shown to the user.
func (r *Reporter) Execute(ctx context.Context, unit compile.Unit, env *session.Env, hasResult bool) error {
	if err := unit.Execute(ctx, env); err != nil {
		var ee *compile.ExecError
		if errors.As(err, &ee) {
			r.sink.WriteText(ee.Error() + "\n")
		} else {
			r.sink.WriteText("Exception was thrown: " + err.Error() + "\n")
		}
		return err
	}
	if hasResult {
		// A nil slot after a successful run means the fragment produced
		// no value: both engines bridge undefined to nil, so a void call
		// framed as an expression must not display a phantom result.
		if v := env.Result(); v != nil {
			r.ShowResult(v)
		}
	}
	return nil
}

// ShowResult renders "(type) value" for the last expression result.
func (r *Reporter) ShowResult(v any) {
	if v == nil {
		r.sink.WriteText("null\n")
		return
	}
	budget := r.sink.LineWidth() * r.sink.MaxLineCount()
	if budget <= 0 {
		budget = 80 * 20
	}
	r.sink.WriteText("(" + types.DisplayName(v) + ") " + Format(v, budget) + "\n")
}

// Format renders a value for display: strings and chars are quoted,
// sequences are rendered element by element and truncated once budget
// characters have been written.
func Format(v any, budget int) string {
	var b strings.Builder
	writeValue(&b, reflect.ValueOf(v), budget)
	return b.String()
}

func writeValue(b *strings.Builder, rv reflect.Value, budget int) {
	if !rv.IsValid() {
		b.WriteString("null")
		return
	}
	switch rv.Kind() {
	case reflect.String:
		fmt.Fprintf(b, "%q", rv.String())
	case reflect.Int32:
		fmt.Fprintf(b, "'%c'", rune(rv.Int()))
	case reflect.Slice, reflect.Array:
		b.WriteString("{")
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if b.Len() > budget {
				b.WriteString("...")
				break
			}
			writeValue(b, element(rv.Index(i)), budget)
		}
		b.WriteString("}")
	case reflect.Map:
		b.WriteString("{")
		keys := rv.MapKeys()
		// fmt sorts map keys; do the same so output is stable.
		sortKeys(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			if b.Len() > budget {
				b.WriteString("...")
				break
			}
			writeValue(b, element(k), budget)
			b.WriteString(": ")
			writeValue(b, element(rv.MapIndex(k)), budget)
		}
		b.WriteString("}")
	default:
		fmt.Fprintf(b, "%v", rv.Interface())
	}
}

// element unwraps interface values stored in containers.
func element(rv reflect.Value) reflect.Value {
	if rv.Kind() == reflect.Interface && !rv.IsNil() {
		return rv.Elem()
	}
	return rv
}

func sortKeys(keys []reflect.Value) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keyLess(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func keyLess(a, b reflect.Value) bool {
	a, b = element(a), element(b)
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int32, reflect.Int64:
		if b.CanInt() {
			return a.Int() < b.Int()
		}
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}
