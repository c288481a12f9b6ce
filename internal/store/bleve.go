package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	scholarlyStopMapName  = "scholarly_stop_map"
	scholarlyStopName     = "scholarly_stop"
	scholarlyAnalyzerName = "scholarly"
)

// BleveIndex implements LexicalIndex on bleve v2, one index per library.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config LexicalConfig
	closed bool
}

var _ LexicalIndex = (*BleveIndex)(nil)

// bleveChunk is the indexed document shape. Heading is indexed alongside
// content so a query matching a section title surfaces its chunks.
type bleveChunk struct {
	Content string `json:"content"`
	Heading string `json:"heading"`
}

// NewBleveIndex opens (or creates) the lexical index at path. An empty path
// creates an in-memory index for testing.
func NewBleveIndex(path string, config LexicalConfig) (*BleveIndex, error) {
	indexMapping, err := buildIndexMapping(config)
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil {
			// A damaged index is rebuildable from the chunk table; clear it
			// rather than refusing to start.
			slog.Warn("lexical index unreadable, clearing",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w", path, removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &BleveIndex{index: idx, path: path, config: config}, nil
}

// buildIndexMapping registers the scholarly analyzer: unicode tokenization,
// lowercasing, stop-word removal.
func buildIndexMapping(config LexicalConfig) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	stopWords := config.StopWords
	if len(stopWords) == 0 {
		stopWords = DefaultStopWords
	}
	tokens := make([]interface{}, len(stopWords))
	for i, w := range stopWords {
		tokens[i] = w
	}

	if err := indexMapping.AddCustomTokenMap(scholarlyStopMapName, map[string]interface{}{
		"type":   tokenmap.Name,
		"tokens": tokens,
	}); err != nil {
		return nil, fmt.Errorf("add stop token map: %w", err)
	}

	if err := indexMapping.AddCustomTokenFilter(scholarlyStopName, map[string]interface{}{
		"type":           stop.Name,
		"stop_token_map": scholarlyStopMapName,
	}); err != nil {
		return nil, fmt.Errorf("add stop filter: %w", err)
	}

	if err := indexMapping.AddCustomAnalyzer(scholarlyAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			scholarlyStopName,
		},
	}); err != nil {
		return nil, fmt.Errorf("add scholarly analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = scholarlyAnalyzerName
	return indexMapping, nil
}

// Index adds or updates chunk postings in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunk{Content: c.Content, Heading: c.Heading}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Search returns chunks matching query, highest BM25 score first.
func (b *BleveIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField("content")
	headingQuery := bleve.NewMatchQuery(queryStr)
	headingQuery.SetField("heading")
	headingQuery.SetBoost(1.5)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(contentQuery, headingQuery))
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes postings by chunk ID.
func (b *BleveIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete postings: %w", err)
	}
	return nil
}

// Reset drops the whole index and recreates it empty. Used by FTS rebuild.
func (b *BleveIndex) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close index for reset: %w", err)
	}

	indexMapping, err := buildIndexMapping(b.config)
	if err != nil {
		return fmt.Errorf("rebuild index mapping: %w", err)
	}

	if b.path == "" {
		b.index, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove index for reset: %w", err)
		}
		b.index, err = bleve.New(b.path, indexMapping)
	}
	if err != nil {
		return fmt.Errorf("recreate lexical index: %w", err)
	}
	return nil
}

// AllIDs returns every indexed chunk ID.
func (b *BleveIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list all postings: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

func (b *BleveIndex) Stats() *LexicalStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &LexicalStats{}
	}

	docCount, _ := b.index.DocCount()
	return &LexicalStats{DocumentCount: int(docCount)}
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// matchedTerms collects the distinct analyzed terms that matched a hit.
func matchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for _, locations := range hit.Locations {
		for term := range locations {
			seen[term] = struct{}{}
		}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}
