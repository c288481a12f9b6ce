package segment

import (
	"strings"

	"github.com/scholia-dev/scholia/internal/config"
)

// applySizePass splits content that exceeds the configured chunk size.
// Content at or under the limit is returned as a single piece. The pass
// operates on placeholder-protected text, so it can never tear a protected
// span: tokens are atomic and the split points are separator boundaries.
// All size accounting goes through arena.restoredLen, so a placeholder is
// charged for the span it stands for rather than its few token bytes.
func applySizePass(content string, arena *Arena, cfg config.ChunkingConfig) []string {
	if cfg.ChunkSize <= 0 || arena.restoredLen(content) <= cfg.ChunkSize {
		return []string{content}
	}

	switch cfg.Strategy {
	case config.StrategyFixed:
		return splitBySeparators(content, arena, cfg)
	default:
		// semantic and paragraph both pack paragraph-granular pieces
		return splitByParagraphs(content, arena, cfg)
	}
}

// splitByParagraphs packs blank-line-delimited paragraphs into pieces of at
// most ChunkSize restored characters, carrying trailing paragraphs of the
// previous piece as overlap.
func splitByParagraphs(content string, arena *Arena, cfg config.ChunkingConfig) []string {
	paragraphs := splitParagraphs(content)
	if len(paragraphs) <= 1 {
		return splitBySeparators(content, arena, cfg)
	}

	var pieces []string
	var current []string
	currentLen := 0

	for _, para := range paragraphs {
		paraLen := arena.restoredLen(para) + 2 // separator contribution

		if currentLen > 0 && currentLen+paraLen > cfg.ChunkSize {
			pieces = append(pieces, strings.Join(current, "\n\n"))
			current = overlapTail(current, arena, cfg.ChunkOverlap)
			currentLen = joinedLen(current, arena)
		}

		current = append(current, para)
		currentLen += paraLen
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, "\n\n"))
	}

	if len(pieces) == 0 {
		return []string{content}
	}
	return pieces
}

// splitParagraphs splits on blank lines, dropping empty fragments.
func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// overlapTail returns the trailing paragraphs of a piece totalling at most
// overlap restored characters. Overlap is paragraph-granular so a protected
// span is never cut, and a paragraph whose restored form busts the budget
// (a multi-hundred-byte equation behind a short token) is never carried.
func overlapTail(paragraphs []string, arena *Arena, overlap int) []string {
	if overlap <= 0 || len(paragraphs) == 0 {
		return nil
	}

	total := 0
	start := len(paragraphs)
	for i := len(paragraphs) - 1; i >= 0; i-- {
		total += arena.restoredLen(paragraphs[i]) + 2
		if total > overlap {
			break
		}
		start = i
	}

	if start == len(paragraphs) {
		return nil
	}
	tail := make([]string, len(paragraphs)-start)
	copy(tail, paragraphs[start:])
	return tail
}

func joinedLen(parts []string, arena *Arena) int {
	n := 0
	for _, p := range parts {
		n += arena.restoredLen(p) + 2
	}
	return n
}

// splitBySeparators splits content using the configured separator list,
// falling back to a token-safe hard wrap when no separator helps.
func splitBySeparators(content string, arena *Arena, cfg config.ChunkingConfig) []string {
	separators := cfg.Separators
	if len(separators) == 0 {
		separators = []string{"\n\n", "\n", ". "}
	}

	for _, sep := range separators {
		if !strings.Contains(content, sep) {
			continue
		}

		fragments := strings.SplitAfter(content, sep)
		var pieces []string
		var current strings.Builder
		currentLen := 0

		for _, frag := range fragments {
			fragLen := arena.restoredLen(frag)
			if currentLen > 0 && currentLen+fragLen > cfg.ChunkSize {
				pieces = append(pieces, current.String())
				current.Reset()
				currentLen = 0
			}
			if fragLen > cfg.ChunkSize {
				// Fragment alone exceeds the limit; wrap it hard.
				pieces = append(pieces, hardWrap(frag, cfg.ChunkSize)...)
				continue
			}
			current.WriteString(frag)
			currentLen += fragLen
		}
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
		}

		if len(pieces) > 1 {
			return pieces
		}
	}

	return hardWrap(content, cfg.ChunkSize)
}

// hardWrap cuts content at fixed offsets, shifting each cut point off any
// placeholder token so protected spans stay intact. Cuts are positioned in
// protected space; a restored span longer than the window comes out whole.
func hardWrap(content string, size int) []string {
	if size <= 0 || len(content) <= size {
		return []string{content}
	}

	var pieces []string
	for len(content) > size {
		cut := size
		if idx := tokenCrossing(content, cut); idx >= 0 {
			cut = idx
		}
		if cut == 0 {
			// Token longer than the window; emit it whole.
			end := strings.Index(content[1:], tokenSuffix) + 2
			cut = end
		}
		pieces = append(pieces, content[:cut])
		content = content[cut:]
	}
	if content != "" {
		pieces = append(pieces, content)
	}
	return pieces
}

// tokenCrossing returns the start of a placeholder token that the proposed
// cut would tear, or -1 when the cut is safe.
func tokenCrossing(content string, cut int) int {
	start := strings.LastIndex(content[:cut], tokenPrefix)
	if start == -1 {
		return -1
	}
	end := strings.Index(content[start+1:], tokenSuffix)
	if end == -1 {
		return -1
	}
	if start+1+end >= cut {
		return start
	}
	return -1
}
