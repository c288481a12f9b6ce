// Package router classifies incoming queries to decide how much document
// context retrieval should assemble: none, a few targeted chunks, or a broad
// multi-document sweep. A rule tier handles the common shapes cheaply; an
// optional LLM tier refines only the low-confidence leftovers.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/llm"
)

// ContextType is the retrieval depth class of a query.
type ContextType string

const (
	// ContextNone means the query has no document dependency at all.
	ContextNone ContextType = "none"

	// ContextPartial means a few targeted chunks answer the query.
	ContextPartial ContextType = "partial"

	// ContextFull means the query needs broad coverage, possibly spanning
	// several documents.
	ContextFull ContextType = "full"
)

// Default router tuning.
const (
	DefaultCacheSize = 10000

	// highConfidence is the floor above which a rule decision is trusted
	// without consulting the LLM tier.
	highConfidence = 0.8

	defaultSuggestedChunks = 4
	fullSuggestedChunks    = 8
)

// ContextDecision is the router's verdict for one query. It is ephemeral and
// never persisted.
type ContextDecision struct {
	Type            ContextType `json:"contextType"`
	SuggestedChunks int         `json:"suggestedChunkCount"`
	NeedsMultiDoc   bool        `json:"needsMultiDocument"`
	Confidence      float64     `json:"confidence"`
	Reason          string      `json:"reason"`
}

// Router maps queries to ContextDecisions. Rule matches carry confidence at
// or above highConfidence and skip the LLM entirely; only the default
// low-confidence case pays for a completion, and only when one is configured.
type Router struct {
	completer llm.Completer
	useLLM    bool
	bilingual bool
	cache     *lru.Cache[string, ContextDecision]
	logger    *slog.Logger
}

// New builds a router from the configuration. When cfg.UseLLM is false, or
// the provider has no completion backend, the router is purely rule-based
// and therefore deterministic. The bilingual flag extends rule matching to
// the Chinese pattern sets; English rules always apply.
func New(cfg config.RouterConfig, bilingual bool, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var completer llm.Completer
	if cfg.Enabled && cfg.UseLLM {
		c, err := llm.NewCompleter(cfg)
		if err != nil {
			return nil, fmt.Errorf("create router completer: %w", err)
		}
		completer = c
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, ContextDecision](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create router cache: %w", err)
	}

	return &Router{
		completer: completer,
		useLLM:    cfg.Enabled && cfg.UseLLM,
		bilingual: bilingual,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Route classifies query. It never returns an error: LLM failures and
// malformed completions degrade to the rule decision.
func (r *Router) Route(ctx context.Context, query string) ContextDecision {
	key := normalizeQuery(query)
	if key == "" {
		return ContextDecision{
			Type:            ContextPartial,
			SuggestedChunks: defaultSuggestedChunks,
			Confidence:      0.5,
			Reason:          "empty query",
		}
	}

	if decision, ok := r.cache.Get(key); ok {
		return decision
	}

	decision := classifyByRules(key, r.bilingual)

	if decision.Confidence < highConfidence && r.useLLM && r.completer != nil {
		if refined, err := r.routeLLM(ctx, query); err == nil {
			decision = refined
		} else {
			r.logger.Debug("llm routing failed, keeping rule decision",
				"error", err)
		}
	}

	r.cache.Add(key, decision)
	return decision
}

// Close releases the LLM client, if any.
func (r *Router) Close() error {
	if r.completer != nil {
		return r.completer.Close()
	}
	return nil
}

// normalizeQuery produces the cache key: rule patterns also match against
// this form, so cache hits and classifications agree.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// routingPrompt asks for the same fields ContextDecision carries. The model
// is told to answer with bare JSON, but parseDecision tolerates prose around
// the object.
const routingPrompt = `You are a retrieval router for a scholarly document assistant. Decide how much document context the query below needs.

Answer with ONLY a JSON object with these fields:
- "contextType": "none" (greeting, thanks, or generation with no document dependency), "partial" (a specific question answerable from a few passages), or "full" (summary, comparison, or whole-document analysis)
- "suggestedChunkCount": integer, 0 for none, small for partial, larger for full
- "needsMultiDocument": true only if the query spans multiple documents
- "confidence": number between 0 and 1
- "reason": one short sentence

Query: %s

JSON:`

func (r *Router) routeLLM(ctx context.Context, query string) (ContextDecision, error) {
	response, err := r.completer.Complete(ctx, fmt.Sprintf(routingPrompt, query))
	if err != nil {
		return ContextDecision{}, err
	}
	return parseDecision(response)
}

// parseDecision extracts a ContextDecision from an LLM response. Models often
// wrap the JSON in prose, so parsing starts at the first '{' and stops at the
// end of the first object.
func parseDecision(response string) (ContextDecision, error) {
	start := strings.IndexByte(response, '{')
	if start < 0 {
		return ContextDecision{}, fmt.Errorf("no JSON object in response %q", truncate(response, 80))
	}

	var decision ContextDecision
	dec := json.NewDecoder(strings.NewReader(response[start:]))
	if err := dec.Decode(&decision); err != nil {
		return ContextDecision{}, fmt.Errorf("decode routing response: %w", err)
	}

	switch ContextType(strings.ToLower(string(decision.Type))) {
	case ContextNone:
		decision.Type = ContextNone
		decision.SuggestedChunks = 0
		decision.NeedsMultiDoc = false
	case ContextPartial:
		decision.Type = ContextPartial
		if decision.SuggestedChunks <= 0 {
			decision.SuggestedChunks = defaultSuggestedChunks
		}
	case ContextFull:
		decision.Type = ContextFull
		if decision.SuggestedChunks <= 5 {
			decision.SuggestedChunks = fullSuggestedChunks
		}
	default:
		return ContextDecision{}, fmt.Errorf("unknown context type %q", decision.Type)
	}

	if decision.Confidence <= 0 || decision.Confidence > 1 {
		decision.Confidence = highConfidence
	}
	if decision.Reason == "" {
		decision.Reason = "llm classification"
	}
	return decision, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
