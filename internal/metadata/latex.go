package metadata

import (
	"regexp"
	"strings"
)

var (
	abstractPattern = regexp.MustCompile(`(?s)\\begin\{abstract\}(.*?)\\end\{abstract\}`)
	commentPattern  = regexp.MustCompile(`(?m)(^|[^\\])%[^\n]*`)
	inlinePattern   = regexp.MustCompile(`\\(?:textbf|textit|textsc|texttt|emph|underline|mbox)\{([^{}]*)\}`)
	accentPattern   = regexp.MustCompile(`\\[a-zA-Z]+\s*`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// ExtractLaTeX pulls title, authors, abstract, and keywords from a LaTeX
// preamble. Command arguments are brace-balanced, so nested formatting inside
// a title survives extraction and is unwrapped by the cleaning pass.
func ExtractLaTeX(content string) *DocumentMetadata {
	meta := &DocumentMetadata{}

	if title, ok := commandArg(content, `\title`); ok {
		meta.Title = CleanLaTeX(title)
	}

	if author, ok := commandArg(content, `\author`); ok {
		meta.Authors = splitAuthors(author)
	}

	if m := abstractPattern.FindStringSubmatch(content); m != nil {
		meta.Abstract = CleanLaTeX(m[1])
	}

	if kw, ok := commandArg(content, `\keywords`); ok {
		for _, k := range splitList(kw, ",;") {
			meta.Keywords = append(meta.Keywords, CleanLaTeX(k))
		}
	}

	return meta
}

// splitAuthors splits a LaTeX author field on \and separators, falling back
// to commas, and cleans each name of markup.
func splitAuthors(raw string) []string {
	var parts []string
	if strings.Contains(raw, `\and`) {
		parts = strings.Split(raw, `\and`)
	} else {
		parts = strings.Split(raw, ",")
	}

	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := CleanLaTeX(p); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// CleanLaTeX strips comments, unwraps common inline formatting commands to
// their arguments, drops remaining command names, and collapses whitespace.
func CleanLaTeX(s string) string {
	s = commentPattern.ReplaceAllString(s, "$1")

	// Unwrap nested formatting from the inside out.
	for {
		replaced := inlinePattern.ReplaceAllString(s, "$1")
		if replaced == s {
			break
		}
		s = replaced
	}

	s = strings.NewReplacer(`\\`, " ", `\&`, "&", `\%`, "%", `\$`, "$", `\_`, "_", "~", " ").Replace(s)
	s = accentPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// commandArg finds `command{...}` in content and returns the brace-balanced
// argument. Regex alone cannot match nested braces, so the argument is walked
// byte-by-byte.
func commandArg(content, command string) (string, bool) {
	start := strings.Index(content, command+"{")
	if start == -1 {
		return "", false
	}

	depth := 0
	for i := start + len(command); i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start+len(command)+1 : i], true
			}
		case '\\':
			i++ // skip escaped character
		}
	}
	return "", false // unbalanced
}
