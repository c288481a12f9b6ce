// Package output provides CLI output formatting: status lines, result
// listings, and terminal-aware color handling.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI styles used by the writer. Kept minimal: bold for headings, dim for
// secondary detail.
const (
	styleReset = "\033[0m"
	styleBold  = "\033[1m"
	styleDim   = "\033[2m"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer that colors output only when out is a real terminal
// and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: isTerminal(out) && !noColor()}
}

// NewPlain creates a Writer that never emits color codes.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

func (w *Writer) style(code, s string) string {
	if !w.useColor {
		return s
	}
	return code + s + styleReset
}

// Printf writes a formatted line.
// Write errors are intentionally ignored for console output.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Heading writes a bold section heading.
func (w *Writer) Heading(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.style(styleBold, fmt.Sprintf(format, args...)))
}

// Detail writes an indented, dimmed secondary line.
func (w *Writer) Detail(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "   %s\n", w.style(styleDim, fmt.Sprintf(format, args...)))
}

// Item writes an indented plain line, for list entries under a heading.
func (w *Writer) Item(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "   %s\n", fmt.Sprintf(format, args...))
}

// Warning writes a warning line.
func (w *Writer) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "warning: %s\n", fmt.Sprintf(format, args...))
}

// Newline writes an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Snippet writes the first n non-empty lines of content, indented.
func (w *Writer) Snippet(content string, n int) {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for _, line := range lines {
		w.Detail("%s", line)
	}
}
