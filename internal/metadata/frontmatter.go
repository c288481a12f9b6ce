package metadata

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontMatter mirrors the recognized YAML front-matter keys. Unknown keys are
// ignored by the decoder.
type frontMatter struct {
	Title    string     `yaml:"title"`
	Author   stringList `yaml:"author"`
	Authors  stringList `yaml:"authors"`
	Date     yaml.Node  `yaml:"date"`
	Keywords stringList `yaml:"keywords"`
	Tags     stringList `yaml:"tags"`
}

// stringList accepts either a YAML sequence or a comma-separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		for _, item := range items {
			if t := strings.TrimSpace(item); t != "" {
				*l = append(*l, t)
			}
		}
	case yaml.ScalarNode:
		*l = splitList(node.Value, ",")
	}
	return nil
}

// ExtractFrontMatter parses a leading "---"-delimited YAML block from Markdown
// content. A missing or malformed block yields empty metadata; a date that is
// not a bare integer year is ignored rather than treated as an error.
func ExtractFrontMatter(content string) *DocumentMetadata {
	meta := &DocumentMetadata{}

	block, ok := frontMatterBlock(content)
	if !ok {
		return meta
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return meta
	}

	meta.Title = strings.TrimSpace(fm.Title)

	meta.Authors = fm.Authors
	if len(meta.Authors) == 0 {
		meta.Authors = fm.Author
	}

	meta.Keywords = fm.Keywords
	if len(meta.Keywords) == 0 {
		meta.Keywords = fm.Tags
	}

	if !fm.Date.IsZero() && fm.Date.Kind == yaml.ScalarNode {
		if year, err := strconv.Atoi(strings.TrimSpace(fm.Date.Value)); err == nil {
			meta.Year = year
		}
	}

	return meta
}

// frontMatterBlock returns the YAML text between the opening and closing ---
// lines. The block must start at the very first line.
func frontMatterBlock(content string) (string, bool) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		if rest, ok = strings.CutPrefix(content, "---\r\n"); !ok {
			return "", false
		}
	}

	for _, terminator := range []string{"\n---\n", "\n---\r\n", "\n...\n"} {
		if idx := strings.Index(rest, terminator); idx != -1 {
			return rest[:idx], true
		}
	}
	if block, found := strings.CutSuffix(rest, "\n---"); found {
		return block, true
	}
	return "", false
}
