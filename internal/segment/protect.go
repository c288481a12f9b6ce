package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholder tokens delimit an opaque handle into the arena's side table.
// NUL bytes never occur in source text, so downstream splitting cannot
// produce a token by accident.
const (
	tokenPrefix = "\x00M"
	tokenSuffix = "\x00"
)

// mathEnvironments lists block math environment names in protection priority
// order. Starred variants are generated alongside each name.
var mathEnvironments = []string{
	"equation", "align", "gather", "multline", "flalign", "eqnarray",
	"matrix", "pmatrix", "bmatrix", "Bmatrix", "vmatrix", "Vmatrix",
	"smallmatrix", "cases", "aligned", "alignat", "gathered", "split",
	"displaymath",
}

// envPatterns holds one compiled pattern per environment (plus starred form),
// each requiring the same environment name on \begin and \end.
var envPatterns = buildEnvPatterns()

func buildEnvPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(mathEnvironments)*2)
	for _, env := range mathEnvironments {
		for _, name := range []string{env, env + "*"} {
			quoted := regexp.QuoteMeta(name)
			patterns = append(patterns, regexp.MustCompile(
				`(?s)\\begin\{`+quoted+`\}.*?\\end\{`+quoted+`\}`))
		}
	}
	return patterns
}

// bracketDisplayPattern matches \[...\] display math.
var bracketDisplayPattern = regexp.MustCompile(`(?s)\\\[.*?\\\]`)

// doubleDollarPattern matches $$...$$ display math.
var doubleDollarPattern = regexp.MustCompile(`(?s)\$\$.+?\$\$`)

// Arena records protected spans out of band, keyed by a monotonically
// increasing integer handle. Handles are never reused; an arena is local to
// one Segment invocation and must not be shared across calls.
type Arena struct {
	next  int
	spans map[int]string
	order []int
}

// NewArena creates an empty placeholder arena.
func NewArena() *Arena {
	return &Arena{spans: make(map[int]string)}
}

// add records a span and returns its placeholder token.
func (a *Arena) add(span string) string {
	handle := a.next
	a.next++
	a.spans[handle] = span
	a.order = append(a.order, handle)
	return tokenPrefix + strconv.Itoa(handle) + tokenSuffix
}

// Len returns the number of protected spans.
func (a *Arena) Len() int {
	return len(a.spans)
}

// restoredLen returns the length s will have after Restore: a placeholder
// token counts as its protected span, not its token bytes. A nil or empty
// arena degrades to plain len.
func (a *Arena) restoredLen(s string) int {
	n := len(s)
	if a == nil || len(a.spans) == 0 || !strings.Contains(s, tokenPrefix) {
		return n
	}
	for _, handle := range a.order {
		token := tokenPrefix + strconv.Itoa(handle) + tokenSuffix
		if c := strings.Count(s, token); c > 0 {
			n += c * (len(a.spans[handle]) - len(token))
		}
	}
	return n
}

// Restore substitutes every placeholder token in s with its original span.
// Restoration is byte-exact: the protected content comes back unchanged.
func (a *Arena) Restore(s string) string {
	if len(a.spans) == 0 || !strings.Contains(s, tokenPrefix) {
		return s
	}
	for _, handle := range a.order {
		token := tokenPrefix + strconv.Itoa(handle) + tokenSuffix
		s = strings.ReplaceAll(s, token, a.spans[handle])
	}
	return s
}

// ProtectLatexBlocks replaces atomic math spans with placeholder tokens and
// returns the placeholder-safe content together with the restore arena.
//
// Priority order: named block environments, bracket display math, double
// dollar display math, single dollar inline math. An escaped dollar (\$) is
// literal text, never a delimiter.
func ProtectLatexBlocks(content string) (string, *Arena) {
	arena := NewArena()

	for _, pattern := range envPatterns {
		content = pattern.ReplaceAllStringFunc(content, arena.add)
	}

	content = bracketDisplayPattern.ReplaceAllStringFunc(content, arena.add)
	content = doubleDollarPattern.ReplaceAllStringFunc(content, arena.add)
	content = protectInlineMath(content, arena)

	return content, arena
}

// protectInlineMath protects $...$ spans, skipping escaped dollars.
// A span with no closing delimiter before end of input is left as-is.
func protectInlineMath(content string, arena *Arena) string {
	var out strings.Builder
	out.Grow(len(content))

	i := 0
	for i < len(content) {
		c := content[i]

		if c == '\\' && i+1 < len(content) {
			// Escaped character (\$ included): copy both bytes verbatim.
			out.WriteByte(c)
			out.WriteByte(content[i+1])
			i += 2
			continue
		}

		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}

		end := findClosingDollar(content, i+1)
		if end == -1 {
			out.WriteString(content[i:])
			break
		}

		out.WriteString(arena.add(content[i : end+1]))
		i = end + 1
	}

	return out.String()
}

// findClosingDollar returns the index of the next unescaped dollar at or
// after start, or -1 if none exists.
func findClosingDollar(content string, start int) int {
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++ // skip escaped character
		case '$':
			return i
		}
	}
	return -1
}

// containsToken reports whether s contains any placeholder token bytes.
func containsToken(s string) bool {
	return strings.Contains(s, tokenPrefix)
}
