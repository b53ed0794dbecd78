package console

import (
	"fmt"
	"io"
)

// Batch is a non-interactive console for one-shot evaluation: output
// goes straight to a writer and there is never a next input line.
type Batch struct {
	out    io.Writer
	width  int
	height int
}

// NewBatch returns a batch console writing to out.
func NewBatch(out io.Writer, width, height int) *Batch {
	return &Batch{out: out, width: width, height: height}
}

// WriteText implements the console contract.
func (b *Batch) WriteText(s string) {
	fmt.Fprint(b.out, s)
}

// RequestLine always cancels: batch input is fed through HandleLine.
func (b *Batch) RequestLine(callback func(line string, ok bool)) {
	callback("", false)
}

// LineWidth bounds one rendered result line.
func (b *Batch) LineWidth() int { return b.width }

// MaxLineCount bounds how many lines a large value may occupy.
func (b *Batch) MaxLineCount() int { return b.height }
