// Package metadata extracts document metadata from scholarly source files.
//
// LaTeX preambles, Markdown YAML front matter, and BibTeX databases each get
// a dedicated extractor; all of them produce the same DocumentMetadata shape.
// Extraction is best-effort: a source with no recognizable metadata yields an
// empty (not nil) result, never an error.
package metadata

import (
	"strings"

	"github.com/scholia-dev/scholia/internal/segment"
)

// DocumentMetadata holds the fields extracted from a document. All fields are
// optional; zero values mean "not present in the source".
type DocumentMetadata struct {
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Year     int      `json:"year,omitempty"`

	// BibKey and CitationText carry reference-manager identifiers through
	// ingestion untouched; they are never derived from content.
	BibKey       string `json:"bibKey,omitempty"`
	CitationText string `json:"citationText,omitempty"`
}

// IsEmpty reports whether no metadata field was extracted.
func (m *DocumentMetadata) IsEmpty() bool {
	return m.Title == "" && len(m.Authors) == 0 && m.Abstract == "" &&
		len(m.Keywords) == 0 && m.Year == 0
}

// Extract pulls metadata from document content according to its format.
// Plain text carries no extractable metadata.
func Extract(content string, format segment.Format) *DocumentMetadata {
	switch format {
	case segment.FormatLaTeX:
		return ExtractLaTeX(content)
	case segment.FormatMarkdown:
		return ExtractFrontMatter(content)
	default:
		return &DocumentMetadata{}
	}
}

// splitList splits a delimited scalar into trimmed, non-empty items.
func splitList(s string, delims string) []string {
	items := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}
