// Package console implements the host side of the engine's console
// contract on a real terminal: liner for line input and history,
// lipgloss for the prompt and banner styling.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
)

const historyFile = ".fiddle_history"

var (
	// promptStyle for the fresh-input prompt
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// contStyle for the continuation prompt
	contStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// bannerStyle for the session header
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("81")).
			Padding(0, 1)

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Terminal implements the engine console contract over liner.
type Terminal struct {
	ln       *liner.State
	out      io.Writer
	histPath string

	width  int
	height int

	pending func() bool

	mu   sync.Mutex
	cb   func(string, bool)
	wake chan struct{}
}

// New opens the terminal, loading input history from the user's home
// directory.
func New(width, height int) *Terminal {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)

	t := &Terminal{
		ln:     ln,
		out:    os.Stdout,
		width:  width,
		height: height,
		wake:   make(chan struct{}, 1),
	}
	if home, err := os.UserHomeDir(); err == nil {
		t.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(t.histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	return t
}

// Bind attaches the session hooks: pending drives the continuation
// prompt, complete feeds tab completion.
func (t *Terminal) Bind(pending func() bool, complete func(string) []string) {
	t.pending = pending
	if complete != nil {
		t.ln.SetCompleter(func(line string) []string {
			i := len(line)
			for i > 0 && (line[i-1] == '$' || line[i-1] == '.' ||
				line[i-1] == '_' || isWordByte(line[i-1])) {
				i--
			}
			var out []string
			for _, c := range complete(line[i:]) {
				out = append(out, line[:i]+c)
			}
			return out
		})
	}
}

// Close persists history and releases the terminal.
func (t *Terminal) Close() {
	if t.histPath != "" {
		if f, err := os.Create(t.histPath); err == nil {
			_, _ = t.ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	_ = t.ln.Close()
}

// Banner prints the session header.
func (t *Terminal) Banner(engineName, mode, id string) {
	content := fmt.Sprintf("%s %s  %s %s\n%s %s",
		dimStyle.Render("Engine:"), engineName,
		dimStyle.Render("Mode:"), mode,
		dimStyle.Render("Session:"), id,
	)
	fmt.Fprintln(t.out, bannerStyle.Render(content))
}

// WriteText implements the append-only console output contract.
func (t *Terminal) WriteText(s string) {
	fmt.Fprint(t.out, s)
}

// LineWidth bounds one rendered result line.
func (t *Terminal) LineWidth() int { return t.width }

// MaxLineCount bounds how many lines a large value may occupy.
func (t *Terminal) MaxLineCount() int { return t.height }

// RequestLine registers a one-shot callback for the next input line.
// An outstanding callback is cancelled first by invoking it with
// ok=false.
func (t *Terminal) RequestLine(callback func(line string, ok bool)) {
	t.mu.Lock()
	prev := t.cb
	t.cb = callback
	t.mu.Unlock()
	if prev != nil {
		prev("", false)
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Serve reads lines until input ends, delivering each to the callback
// registered by RequestLine. It blocks and is meant to run on its own
// goroutine next to the engine loop.
func (t *Terminal) Serve() {
	for range t.wake {
		t.mu.Lock()
		cb := t.cb
		t.cb = nil
		t.mu.Unlock()
		if cb == nil {
			continue
		}

		line, err := t.ln.Prompt(t.prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(t.out)
			cb("", false)
			return
		}
		if err != nil {
			cb("", false)
			return
		}
		if strings.TrimSpace(line) != "" {
			t.ln.AppendHistory(line)
		}
		cb(line, true)
	}
}

func (t *Terminal) prompt() string {
	if t.pending != nil && t.pending() {
		return contStyle.Render("... ")
	}
	return promptStyle.Render(">>> ")
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
