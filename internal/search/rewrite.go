package search

import (
	"regexp"
	"strings"
)

// Interrogative scaffolding carries no retrieval signal but still earns BM25
// weight for terms like "what" and "explain". The rewrite strips it from the
// lexical query; the vector leg keeps the full question, embeddings handle
// natural language fine.
var (
	englishScaffold = regexp.MustCompile(
		`(?i)^(?:please\s+)?(?:what\s+(?:is|are|was|were)|how\s+(?:do|does|did|to|can)|why\s+(?:is|are|do|does)|where\s+(?:is|are)|when\s+(?:is|was)|explain|define|tell\s+me\s+about)\s+(?:the\s+|a\s+|an\s+|this\s+)?`)

	chineseScaffoldPrefix = regexp.MustCompile(`^(什么是|请解释|解释一下|请问)`)
	chineseScaffoldSuffix = regexp.MustCompile(`(是什么意思|指的是什么|是什么)$`)

	trailingPunct = regexp.MustCompile(`[\s?？!！。.]+$`)
)

// rewriteQuery strips interrogative scaffolding and trailing punctuation from
// a query, leaving its content terms unchanged. When stripping would leave
// nothing, the original query wins.
func rewriteQuery(query string) string {
	q := strings.TrimSpace(query)
	q = trailingPunct.ReplaceAllString(q, "")

	if loc := englishScaffold.FindStringIndex(q); loc != nil {
		q = q[loc[1]:]
	}
	q = chineseScaffoldPrefix.ReplaceAllString(q, "")
	q = chineseScaffoldSuffix.ReplaceAllString(q, "")

	q = strings.TrimSpace(q)
	if q == "" {
		return strings.TrimSpace(query)
	}
	return q
}
