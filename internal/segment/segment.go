package segment

import (
	"github.com/scholia-dev/scholia/internal/config"
)

// Segment splits document content into raw chunks according to its format.
//
// Empty input yields exactly one empty chunk rather than zero chunks, so a
// document record always has at least one indexable unit.
func Segment(content string, format Format, cfg config.ChunkingConfig) []*RawChunk {
	if content == "" {
		return []*RawChunk{{Index: 0, Type: ChunkTypeDocument, StartLine: 1, EndLine: 1}}
	}

	switch format {
	case FormatLaTeX:
		return segmentLaTeX(content, cfg)
	case FormatMarkdown:
		return segmentMarkdown(content, cfg)
	default:
		return segmentText(content, cfg)
	}
}

// segmentText splits plain text by paragraphs under the size pass. The whole
// document is one logical section.
func segmentText(content string, cfg config.ChunkingConfig) []*RawChunk {
	arena := NewArena()
	pieces := applySizePass(content, arena, cfg)
	return buildChunks(pieces, arena, &Section{StartLine: 1}, ChunkTypeDocument, 0)
}
