package scan

import "strings"

// CommandMarker prefixes directive lines handled outside the accumulator.
const CommandMarker = "#"

// Event classifies what Feed did with one physical line.
type Event int

const (
	// Blank means the line was swallowed; keep prompting.
	Blank Event = iota
	// Command means the line is a directive and never entered the buffer.
	Command
	// Using means the line was a using-declaration, consumed immediately.
	Using
	// More means the line was buffered but the fragment is not complete.
	More
	// Ready means nesting returned to zero and a fragment was flushed.
	Ready
)

// Accumulator buffers physical lines until brace nesting and quote
// parity indicate a complete fragment. State survives across Feed calls
// for the lifetime of the session.
type Accumulator struct {
	buf   strings.Builder
	depth int
	quote byte // 0 when outside a quoted span, else the quote mark
}

// Depth returns the current brace nesting counter.
func (a *Accumulator) Depth() int { return a.depth }

// Pending reports whether a partial fragment is buffered; the caller
// uses it to pick the continuation prompt.
func (a *Accumulator) Pending() bool {
	return a.buf.Len() > 0 || a.depth != 0 || a.quote != 0
}

// Reset drops any partial fragment and clears nesting state.
func (a *Accumulator) Reset() {
	a.buf.Reset()
	a.depth = 0
	a.quote = 0
}

// Feed accepts one physical line. The returned payload is the directive
// body for Command, the namespace for Using, and the flushed fragment
// for Ready; it is empty otherwise. Directive and using classification
// applies only while no fragment is pending, so braces may enclose
// lines that merely look like directives.
func (a *Accumulator) Feed(line string) (Event, string) {
	trimmed := strings.TrimSpace(line)

	if !a.Pending() {
		if trimmed == "" {
			return Blank, ""
		}
		if strings.HasPrefix(trimmed, CommandMarker) {
			return Command, strings.TrimPrefix(trimmed, CommandMarker)
		}
		if ns, ok := MatchUsing(trimmed); ok {
			return Using, ns
		}
	} else if trimmed == "" && a.quote == 0 {
		// Blank lines between braces carry no nesting information.
		return More, ""
	}

	if a.buf.Len() > 0 {
		a.buf.WriteByte('\n')
	}
	a.buf.WriteString(line)
	a.track(line)

	if a.depth == 0 && a.quote == 0 {
		fragment := a.buf.String()
		a.buf.Reset()
		return Ready, fragment
	}
	return More, ""
}

// track scans one line left to right, toggling quote parity on unescaped
// quote marks and counting braces only outside quoted spans. The counter
// may go negative within a line; unbalanced input is surfaced by the
// compiler, not here.
func (a *Accumulator) track(line string) {
	for i := 0; i < len(line); i++ {
		c := line[i]
		if a.quote != 0 {
			if c == '\\' {
				i++
			} else if c == a.quote {
				a.quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			a.quote = c
		case '{':
			a.depth++
		case '}':
			a.depth--
		}
	}
}
