package router

import "regexp"

// Rule patterns match against the normalized (lowercased, trimmed) query.
// Three families in priority order, each split into an English set and a
// Chinese set; the Chinese sets only apply when bilingual matching is on.
type patternSet struct {
	english []*regexp.Regexp
	chinese []*regexp.Regexp
}

func (s patternSet) match(query string, bilingual bool) bool {
	for _, p := range s.english {
		if p.MatchString(query) {
			return true
		}
	}
	if !bilingual {
		return false
	}
	for _, p := range s.chinese {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

var (
	// No document dependency: greetings, thanks, and pure generation
	// requests the retriever should never see.
	noContextPatterns = patternSet{
		english: []*regexp.Regexp{
			regexp.MustCompile(`^(hi|hello|hey|yo|good (morning|afternoon|evening))[\s!,.?]*$`),
			regexp.MustCompile(`^(thanks|thank you|thx|cheers|bye|goodbye|see you)[\s!,.?]*$`),
			regexp.MustCompile(`(write|compose|make up) (me )?(a |an )?(poem|joke|story|song|limerick)`),
		},
		chinese: []*regexp.Regexp{
			regexp.MustCompile(`^(你好|您好|嗨|哈喽|早上好|下午好|晚上好)[\s！!，,。.？?]*$`),
			regexp.MustCompile(`^(谢谢|多谢|感谢|再见|拜拜)[\s！!，,。.？?]*$`),
			regexp.MustCompile(`(写|编)(一?首诗|个?笑话|个?故事)`),
		},
	}

	// Whole-document work: summaries, comparisons, structure, contribution
	// and methodology questions that need broad coverage.
	fullContextPatterns = patternSet{
		english: []*regexp.Regexp{
			regexp.MustCompile(`\b(summarize|summarise|summary|overview|synthesize)\b`),
			regexp.MustCompile(`\b(compare|contrast|difference between|differences between)\b`),
			regexp.MustCompile(`\b(main|key|overall) (contribution|contributions|findings|arguments?|ideas?|results)\b`),
			regexp.MustCompile(`\b(structure|organization|outline) of (the |this )?(paper|document|article|thesis|chapter)\b`),
			regexp.MustCompile(`\bmethodolog(y|ies)\b`),
		},
		chinese: []*regexp.Regexp{
			regexp.MustCompile(`总结|概括|综述|概述|梳理`),
			regexp.MustCompile(`(比较|对比|异同)`),
			regexp.MustCompile(`(整体|全文|主要)(结构|贡献|思路|结论|发现)`),
			regexp.MustCompile(`研究方法|方法论`),
		},
	}

	// Targeted lookups: definitions, mechanisms, specific parameters and
	// formula explanations answerable from a few passages.
	partialContextPatterns = patternSet{
		english: []*regexp.Regexp{
			regexp.MustCompile(`\bwhat (is|are|does|do)\b`),
			regexp.MustCompile(`\bhow (do|does|did|to|is|are|can|was|were)\b`),
			regexp.MustCompile(`\b(define|definition of|meaning of)\b`),
			regexp.MustCompile(`\b(explain|derive|interpret) (the |this )?(formula|equation|theorem|lemma|proof|term)\b`),
			regexp.MustCompile(`\b(value|values) of\b`),
			regexp.MustCompile(`\b(parameter|hyperparameter|coefficient|constant|threshold)s?\b`),
			regexp.MustCompile(`\bwh(ere|ich|y|en)\b`),
		},
		chinese: []*regexp.Regexp{
			regexp.MustCompile(`(是什么|什么是|指的是)`),
			regexp.MustCompile(`(如何|怎么|怎样|为什么|哪里|哪个|何时)`),
			regexp.MustCompile(`(解释|推导|定义)`),
			regexp.MustCompile(`(公式|方程|定理|引理|证明|参数|系数|阈值)`),
		},
	}
)

// classifyByRules runs the three pattern families in priority order against
// the normalized query. No-context wins over full, full over partial: a query
// like "thanks, now summarize" is rare enough that the cheaper reading holds.
func classifyByRules(query string, bilingual bool) ContextDecision {
	if noContextPatterns.match(query, bilingual) {
		return ContextDecision{
			Type:       ContextNone,
			Confidence: 0.9,
			Reason:     "matched no-context pattern",
		}
	}

	if fullContextPatterns.match(query, bilingual) {
		return ContextDecision{
			Type:            ContextFull,
			SuggestedChunks: fullSuggestedChunks,
			NeedsMultiDoc:   true,
			Confidence:      0.85,
			Reason:          "matched full-context pattern",
		}
	}

	if partialContextPatterns.match(query, bilingual) {
		return ContextDecision{
			Type:            ContextPartial,
			SuggestedChunks: defaultSuggestedChunks,
			Confidence:      0.85,
			Reason:          "matched partial-context pattern",
		}
	}

	return ContextDecision{
		Type:            ContextPartial,
		SuggestedChunks: defaultSuggestedChunks,
		Confidence:      0.5,
		Reason:          "no pattern matched",
	}
}
