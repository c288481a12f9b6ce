package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// BibEntry is one parsed BibTeX record.
type BibEntry struct {
	Type   string            // article, book, inproceedings, ...
	Key    string            // citation key
	Fields map[string]string // lowercased field name -> value
}

// Metadata converts a BibTeX entry into the common metadata shape.
func (e *BibEntry) Metadata() *DocumentMetadata {
	meta := &DocumentMetadata{
		Title:    e.Fields["title"],
		Abstract: e.Fields["abstract"],
		BibKey:   e.Key,
	}
	// BibTeX separates names with " and ", unlike LaTeX's \and.
	if author := e.Fields["author"]; author != "" {
		for _, name := range strings.Split(author, " and ") {
			if cleaned := CleanLaTeX(name); cleaned != "" {
				meta.Authors = append(meta.Authors, cleaned)
			}
		}
	}
	if kw := e.Fields["keywords"]; kw != "" {
		meta.Keywords = splitList(kw, ",;")
	}
	if year, err := strconv.Atoi(strings.TrimSpace(e.Fields["year"])); err == nil {
		meta.Year = year
	}
	return meta
}

// ParseBibTeX parses all @type{key, ...} entries from a BibTeX database.
// Field values may be brace- or quote-delimited; both parse identically.
// Malformed entries are skipped, never fatal.
func ParseBibTeX(content string) []*BibEntry {
	var entries []*BibEntry

	for i := 0; i < len(content); i++ {
		if content[i] != '@' {
			continue
		}

		entry, next := parseEntry(content, i)
		if entry != nil {
			// @comment, @preamble and @string are directives, not records.
			switch entry.Type {
			case "comment", "preamble", "string":
			default:
				entries = append(entries, entry)
			}
		}
		if next > i {
			i = next - 1
		}
	}

	return entries
}

// parseEntry parses one entry starting at the '@' at offset start. It returns
// the entry (nil when malformed) and the offset to resume scanning from.
func parseEntry(content string, start int) (*BibEntry, int) {
	i := start + 1

	typeStart := i
	for i < len(content) && (unicode.IsLetter(rune(content[i])) || unicode.IsDigit(rune(content[i]))) {
		i++
	}
	entryType := strings.ToLower(content[typeStart:i])
	if entryType == "" {
		return nil, i
	}

	i = skipSpace(content, i)
	if i >= len(content) || content[i] != '{' {
		return nil, i
	}
	i++

	keyStart := i
	for i < len(content) && content[i] != ',' && content[i] != '}' {
		i++
	}
	if i >= len(content) {
		return nil, i
	}
	entry := &BibEntry{
		Type:   entryType,
		Key:    strings.TrimSpace(content[keyStart:i]),
		Fields: make(map[string]string),
	}
	if content[i] == '}' {
		return entry, i + 1
	}
	i++ // past the comma

	for i < len(content) {
		i = skipSpace(content, i)
		if i >= len(content) {
			return nil, i
		}
		if content[i] == '}' {
			return entry, i + 1
		}
		if content[i] == ',' {
			i++
			continue
		}

		nameStart := i
		for i < len(content) && content[i] != '=' && content[i] != '}' && content[i] != ',' {
			i++
		}
		if i >= len(content) || content[i] != '=' {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(content[nameStart:i]))
		i = skipSpace(content, i+1)
		if i >= len(content) {
			return nil, i
		}

		value, next, ok := parseFieldValue(content, i)
		if !ok {
			return nil, next
		}
		if name != "" {
			entry.Fields[name] = strings.TrimSpace(value)
		}
		i = next
	}

	return nil, i
}

// parseFieldValue reads one field value: {balanced braces}, "quoted", or a
// bare token up to the next comma or closing brace.
func parseFieldValue(content string, i int) (string, int, bool) {
	switch content[i] {
	case '{':
		depth := 0
		for j := i; j < len(content); j++ {
			switch content[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return content[i+1 : j], j + 1, true
				}
			}
		}
		return "", len(content), false
	case '"':
		for j := i + 1; j < len(content); j++ {
			if content[j] == '"' && content[j-1] != '\\' {
				return content[i+1 : j], j + 1, true
			}
		}
		return "", len(content), false
	default:
		j := i
		for j < len(content) && content[j] != ',' && content[j] != '}' && content[j] != '\n' {
			j++
		}
		return content[i:j], j, true
	}
}

func skipSpace(content string, i int) int {
	for i < len(content) && (content[i] == ' ' || content[i] == '\t' || content[i] == '\n' || content[i] == '\r') {
		i++
	}
	return i
}

// citePattern matches the \cite command family; the argument may carry
// several comma-separated keys.
var citePattern = regexp.MustCompile(`\\cite(?:p|t|alp|author|year)?\*?(?:\[[^\]]*\])*\{([^}]*)\}`)

// CitationCounter aggregates citation-key usage across a library. Counts are
// mutable: each newly indexed document adds its citations on top of the
// running totals.
type CitationCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCitationCounter() *CitationCounter {
	return &CitationCounter{counts: make(map[string]int)}
}

// Scan counts every citation key referenced by one document's content and
// folds it into the running totals. It returns the number of citation
// occurrences found in this document.
func (c *CitationCounter) Scan(content string) int {
	found := 0
	matches := citePattern.FindAllStringSubmatch(content, -1)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range matches {
		for _, key := range splitList(m[1], ",") {
			c.counts[key]++
			found++
		}
	}
	return found
}

// Count returns the running usage total for one citation key.
func (c *CitationCounter) Count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Counts returns a copy of all running totals.
func (c *CitationCounter) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
