package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectLatexBlocks_EquationEnvironment(t *testing.T) {
	content := `Intro text.
\begin{equation}
E = mc^2
\end{equation}
Outro text.`

	protected, arena := ProtectLatexBlocks(content)

	require.Equal(t, 1, arena.Len())
	assert.NotContains(t, protected, "E = mc^2")
	assert.Contains(t, protected, "Intro text.")

	// Byte-identical round trip
	assert.Equal(t, content, arena.Restore(protected))
}

func TestProtectLatexBlocks_EnvironmentNameMustMatch(t *testing.T) {
	// \begin{align} closed by \end{aligned} is not a balanced align block
	content := `\begin{align} x &= 1 \end{aligned}`

	_, arena := ProtectLatexBlocks(content)

	// The dangling align is not protected as a block environment
	for _, span := range arena.spans {
		assert.NotContains(t, span, `\begin{align}`)
	}
}

func TestProtectLatexBlocks_StarredVariants(t *testing.T) {
	content := `\begin{equation*}
a + b
\end{equation*}`

	protected, arena := ProtectLatexBlocks(content)

	require.Equal(t, 1, arena.Len())
	assert.Equal(t, content, arena.Restore(protected))
}

func TestProtectLatexBlocks_PriorityOrder(t *testing.T) {
	content := `\begin{align}
x &= \sum_i a_i
\end{align}
Display: \[ y = f(x) \]
Double: $$ z^2 $$
Inline: $w$`

	protected, arena := ProtectLatexBlocks(content)

	assert.Equal(t, 4, arena.Len())
	assert.NotContains(t, protected, `\sum_i`)
	assert.NotContains(t, protected, "y = f(x)")
	assert.NotContains(t, protected, "z^2")
	assert.NotContains(t, protected, "$w$")
	assert.Equal(t, content, arena.Restore(protected))
}

func TestProtectLatexBlocks_EscapedDollarIsLiteral(t *testing.T) {
	protected, arena := ProtectLatexBlocks(`The price is \$100.`)

	assert.Equal(t, 0, arena.Len())
	assert.Equal(t, `The price is \$100.`, protected)
}

func TestProtectLatexBlocks_EscapedDollarInsideText(t *testing.T) {
	// Two escaped dollars must not pair up as inline math delimiters
	content := `Costs range from \$10 to \$20 per page.`

	_, arena := ProtectLatexBlocks(content)
	assert.Equal(t, 0, arena.Len())
}

func TestProtectLatexBlocks_InlineMathMixedWithEscapes(t *testing.T) {
	content := `We pay \$5 for $x$ units.`

	protected, arena := ProtectLatexBlocks(content)

	require.Equal(t, 1, arena.Len())
	assert.Contains(t, protected, `\$5`)
	assert.Equal(t, content, arena.Restore(protected))
}

func TestProtectLatexBlocks_UnclosedDollarLeftAlone(t *testing.T) {
	content := `A lonely $ sign`

	protected, arena := ProtectLatexBlocks(content)

	assert.Equal(t, 0, arena.Len())
	assert.Equal(t, content, protected)
}

func TestProtectLatexBlocks_NestedEnvironments(t *testing.T) {
	content := `\begin{equation}
\begin{aligned}
a &= b \\
c &= d
\end{aligned}
\end{equation}`

	protected, arena := ProtectLatexBlocks(content)

	// The outer equation swallows the nested aligned block whole
	require.Equal(t, 1, arena.Len())
	assert.False(t, strings.Contains(protected, "aligned"))
	assert.Equal(t, content, arena.Restore(protected))
}

func TestArena_HandlesNeverReused(t *testing.T) {
	arena := NewArena()
	t1 := arena.add("first")
	t2 := arena.add("second")

	assert.NotEqual(t, t1, t2)
	assert.Equal(t, "first second", arena.Restore(t1+" "+t2))
}

func TestArena_RestoredLenCountsSpans(t *testing.T) {
	arena := NewArena()
	token := arena.add("$$x^2 + y^2 = z^2$$")

	s := "before " + token + " after"
	assert.Equal(t, len("before $$x^2 + y^2 = z^2$$ after"), arena.restoredLen(s))
	assert.Equal(t, len(arena.Restore(s)), arena.restoredLen(s))

	// Token-free text and a nil arena both degrade to plain len.
	assert.Equal(t, 3, arena.restoredLen("abc"))
	var none *Arena
	assert.Equal(t, 3, none.restoredLen("abc"))
}
