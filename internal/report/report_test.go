package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/itsmostafa/fiddle/internal/compile"
	"github.com/itsmostafa/fiddle/internal/session"
)

type recordingSink struct {
	out   strings.Builder
	width int
	lines int
}

func (s *recordingSink) WriteText(text string) { s.out.WriteString(text) }
func (s *recordingSink) LineWidth() int        { return s.width }
func (s *recordingSink) MaxLineCount() int     { return s.lines }

type unitFunc func(ctx context.Context, env *session.Env) error

func (f unitFunc) Execute(ctx context.Context, env *session.Env) error { return f(ctx, env) }

func TestExecuteShowsResult(t *testing.T) {
	sink := &recordingSink{}
	env := session.New()
	r := New(sink)

	unit := unitFunc(func(ctx context.Context, env *session.Env) error {
		env.SetResult(4)
		return nil
	})
	if err := r.Execute(context.Background(), unit, env, true); err != nil {
		t.Fatal(err)
	}
	if got := sink.out.String(); got != "(int) 4\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExecuteNilResultIsSilent(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)

	// A void call framed as an expression leaves nil in the result
	// slot; no phantom "null" may appear.
	unit := unitFunc(func(ctx context.Context, env *session.Env) error {
		env.SetResult(nil)
		return nil
	})
	if err := r.Execute(context.Background(), unit, session.New(), true); err != nil {
		t.Fatal(err)
	}
	if sink.out.Len() != 0 {
		t.Errorf("nil result displayed %q", sink.out.String())
	}
}

func TestExecuteStatementIsSilent(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)

	unit := unitFunc(func(ctx context.Context, env *session.Env) error { return nil })
	if err := r.Execute(context.Background(), unit, session.New(), false); err != nil {
		t.Fatal(err)
	}
	if sink.out.Len() != 0 {
		t.Errorf("statement execution wrote %q", sink.out.String())
	}
}

func TestExecuteReportsExecError(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)

	boom := &compile.ExecError{Kind: "RangeError", Message: "out of bounds"}
	unit := unitFunc(func(ctx context.Context, env *session.Env) error { return boom })
	err := r.Execute(context.Background(), unit, session.New(), true)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got := sink.out.String(); got != "RangeError was thrown: out of bounds\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExecuteWrapsPlainError(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)

	unit := unitFunc(func(ctx context.Context, env *session.Env) error {
		return errors.New("engine gave up")
	})
	r.Execute(context.Background(), unit, session.New(), true)
	if got := sink.out.String(); got != "Exception was thrown: engine gave up\n" {
		t.Errorf("output = %q", got)
	}
}

func TestShowResultNull(t *testing.T) {
	sink := &recordingSink{}
	New(sink).ShowResult(nil)
	if got := sink.out.String(); got != "null\n" {
		t.Errorf("output = %q", got)
	}
}

func TestShowResultTypedPrefix(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"int", 4, "(int) 4\n"},
		{"string", "hi", "(string) \"hi\"\n"},
		{"char", 'x', "(char) 'x'\n"},
		{"double", 1.5, "(double) 1.5\n"},
		{"bool", true, "(bool) true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			New(sink).ShowResult(tc.v)
			if got := sink.out.String(); got != tc.want {
				t.Errorf("ShowResult(%v) wrote %q, want %q", tc.v, got, tc.want)
			}
		})
	}
}

func TestFormatSlice(t *testing.T) {
	got := Format([]any{1, "two", 'c'}, 200)
	want := `{1, "two", 'c'}`
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatNestedSlice(t *testing.T) {
	got := Format([]any{[]any{1, 2}, []any{3}}, 200)
	if got != "{{1, 2}, {3}}" {
		t.Errorf("Format = %q", got)
	}
}

func TestFormatMapSortedKeys(t *testing.T) {
	got := Format(map[string]any{"b": 2, "a": 1, "c": 3}, 200)
	if got != `{"a": 1, "b": 2, "c": 3}` {
		t.Errorf("Format = %q", got)
	}
}

func TestFormatTruncatesLongSequences(t *testing.T) {
	long := make([]any, 1000)
	for i := range long {
		long[i] = i
	}
	got := Format(long, 40)
	if !strings.HasSuffix(got, "...}") {
		t.Errorf("long sequence not truncated: %q", got)
	}
	if len(got) > 60 {
		t.Errorf("truncated output still %d chars", len(got))
	}
}

func TestShowResultUsesSinkBudget(t *testing.T) {
	sink := &recordingSink{width: 10, lines: 2}
	vals := make([]any, 100)
	for i := range vals {
		vals[i] = i
	}
	New(sink).ShowResult(vals)
	if !strings.Contains(sink.out.String(), "...") {
		t.Errorf("narrow sink did not truncate: %q", sink.out.String())
	}
}
