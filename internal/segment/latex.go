package segment

import (
	"regexp"
	"strings"

	"github.com/scholia-dev/scholia/internal/config"
)

// sectionCommandPattern matches LaTeX structural commands with their titles.
// Starred variants are included; the title capture stops at the first closing
// brace, which covers the overwhelming majority of scholarly sources.
var sectionCommandPattern = regexp.MustCompile(
	`\\(part|chapter|section|subsection|subsubsection)\*?\{([^}]*)\}`)

// latexLevels maps structural command names to heading depths.
var latexLevels = map[string]int{
	"part":          1,
	"chapter":       1,
	"section":       2,
	"subsection":    3,
	"subsubsection": 4,
}

// segmentLaTeX splits LaTeX content into section chunks.
//
// Atomic math spans are protected before any structural split and restored
// intact into each resulting chunk, so no chunk boundary can fall inside a
// math block. Content preceding the first structural command becomes a
// "preamble" chunk; a document with no structural commands is emitted whole.
func segmentLaTeX(content string, cfg config.ChunkingConfig) []*RawChunk {
	protected, arena := ProtectLatexBlocks(content)

	matches := sectionCommandPattern.FindAllStringSubmatchIndex(protected, -1)
	if len(matches) == 0 {
		pieces := applySizePass(protected, arena, cfg)
		return buildChunks(pieces, arena, &Section{}, ChunkTypeDocument, 0)
	}

	var chunks []*RawChunk

	// Preamble: everything before the first structural command.
	if pre := protected[:matches[0][0]]; strings.TrimSpace(arena.Restore(pre)) != "" {
		pieces := applySizePass(pre, arena, cfg)
		chunks = append(chunks, buildChunks(pieces, arena, &Section{Heading: "preamble"}, ChunkTypePreamble, len(chunks))...)
	}

	for i, m := range matches {
		command := protected[m[2]:m[3]]
		title := protected[m[4]:m[5]]

		end := len(protected)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sec := &Section{
			Heading:   strings.TrimSpace(arena.Restore(title)),
			Level:     latexLevels[command],
			StartLine: 1 + strings.Count(protected[:m[0]], "\n"),
		}

		body := protected[m[0]:end]
		pieces := applySizePass(body, arena, cfg)
		chunks = append(chunks, buildChunks(pieces, arena, sec, ChunkTypeSection, len(chunks))...)
	}

	return chunks
}

// buildChunks restores protected spans into each piece and assembles the
// final chunks. An empty pieces slice still yields one (possibly empty)
// chunk so heading metadata is never lost.
func buildChunks(pieces []string, arena *Arena, sec *Section, typ ChunkType, startIndex int) []*RawChunk {
	if len(pieces) == 0 {
		pieces = []string{""}
	}

	chunks := make([]*RawChunk, 0, len(pieces))
	for i, piece := range pieces {
		restored := arena.Restore(piece)

		t := typ
		if i > 0 {
			t = ChunkTypeParagraph
		}

		chunks = append(chunks, &RawChunk{
			Index:        startIndex + i,
			Content:      restored,
			Type:         t,
			Heading:      sec.Heading,
			HeadingLevel: sec.Level,
			StartLine:    sec.StartLine,
			EndLine:      sec.StartLine + strings.Count(restored, "\n"),
		})
	}
	return chunks
}
