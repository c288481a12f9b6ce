package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_BufferOutputIsUncolored(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Heading("Found %d results", 3)
	w.Item("1. Attention Is All You Need (score: 0.91)")
	w.Detail("scaled dot-product attention")

	out := buf.String()
	assert.Contains(t, out, "Found 3 results")
	assert.Contains(t, out, "Attention Is All You Need")
	assert.NotContains(t, out, "\033[", "a buffer is not a terminal, no ANSI codes")
}

func TestWriter_Snippet_TrimsTrailingBlankLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	w.Snippet("first line\nsecond line\n\n\n", 5)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first line")
}

func TestWriter_Snippet_LimitsLineCount(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	w.Snippet("a\nb\nc\nd", 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
}

func TestWriter_Warning(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	w.Warning("embedding provider unreachable: %s", "ollama")
	assert.Contains(t, buf.String(), "warning: embedding provider unreachable: ollama")
}
