// Package segment provides format-aware chunking of scholarly source files.
//
// LaTeX content is split on sectioning commands after atomic math spans have
// been protected behind placeholder handles; Markdown is split on heading
// lines; plain text falls back to paragraph splitting. Size and overlap
// constraints apply as a secondary pass inside oversized sections only, never
// across a protected span or a heading boundary.
package segment

// Format identifies the source format of a document.
type Format string

const (
	FormatLaTeX    Format = "latex"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// FormatForExtension maps a file extension (with leading dot) to a Format.
// Unknown extensions are treated as plain text.
func FormatForExtension(ext string) Format {
	switch ext {
	case ".tex", ".latex", ".sty", ".cls":
		return FormatLaTeX
	case ".md", ".markdown", ".mdx":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// ChunkType describes the semantic role of a chunk within its document.
type ChunkType string

const (
	// ChunkTypePreamble is content preceding the first structural command or heading.
	ChunkTypePreamble ChunkType = "preamble"
	// ChunkTypeSection is a heading- or command-delimited section.
	ChunkTypeSection ChunkType = "section"
	// ChunkTypeParagraph is a size-pass continuation piece of a larger section.
	ChunkTypeParagraph ChunkType = "paragraph"
	// ChunkTypeDocument is a whole document emitted as a single chunk.
	ChunkTypeDocument ChunkType = "document"
)

// RawChunk is one contiguous span of extracted text, pre-persistence.
type RawChunk struct {
	// Index is the 0-based ordinal of this chunk within the document.
	Index int

	// Content is the chunk text with all protected spans restored intact.
	Content string

	// Type is the semantic role of this chunk.
	Type ChunkType

	// Heading is the section title, when one exists.
	Heading string

	// HeadingLevel is 1-6 for Markdown headings, command depth for LaTeX
	// (part=0 treated as 1, chapter=1, section=2, ...), 0 when heading-less.
	HeadingLevel int

	// StartLine and EndLine are 1-indexed source lines when known.
	StartLine int
	EndLine   int
}

// Section is an intermediate heading-delimited span used by the splitters.
type Section struct {
	// Heading is the title text, empty for heading-less sections.
	Heading string

	// Level is the heading depth (1-6 for Markdown).
	Level int

	// Content is the section body excluding the heading line itself.
	Content string

	// StartLine is the 1-indexed line of the heading (or 1 for preamble).
	StartLine int
}
