package segment

import (
	"regexp"
	"strings"

	"github.com/scholia-dev/scholia/internal/config"
)

// headingPattern matches ATX headings (# through ######) at line start.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// SplitByHeadings splits Markdown content into heading-delimited sections.
//
// Content before the first heading becomes a heading-less section. A document
// with zero headings yields exactly one section whose heading is empty and
// whose content is the trimmed input. A heading immediately followed by
// another heading still yields a section (empty-bodied) so its metadata is
// not lost.
func SplitByHeadings(content string) []*Section {
	lines := strings.Split(content, "\n")

	var sections []*Section
	var current *Section
	var body strings.Builder
	sawHeading := false

	flush := func() {
		if current != nil {
			current.Content = strings.TrimRight(body.String(), "\n")
			sections = append(sections, current)
			body.Reset()
		}
	}

	for lineNum, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			sawHeading = true
			current = &Section{
				Heading:   strings.TrimSpace(m[2]),
				Level:     len(m[1]),
				StartLine: lineNum + 1,
			}
			continue
		}

		if current == nil {
			current = &Section{StartLine: 1}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if !sawHeading {
		return []*Section{{Content: strings.TrimSpace(content), StartLine: 1}}
	}

	return sections
}

// segmentMarkdown splits Markdown content into section chunks, applying the
// size pass inside oversized sections only.
func segmentMarkdown(content string, cfg config.ChunkingConfig) []*RawChunk {
	sections := SplitByHeadings(content)

	var chunks []*RawChunk
	arena := NewArena() // no protected spans in Markdown; kept for uniform restore path

	for _, sec := range sections {
		typ := ChunkTypeSection
		if sec.Heading == "" {
			typ = ChunkTypePreamble
			if len(sections) == 1 {
				typ = ChunkTypeDocument
			}
		}

		pieces := applySizePass(sec.Content, arena, cfg)
		chunks = append(chunks, buildChunks(pieces, arena, sec, typ, len(chunks))...)
	}

	return chunks
}
