// Package store is the persistence layer: SQLite metadata, a bleve lexical
// index, and an HNSW vector index, one lexical+vector pair per library.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/scholia-dev/scholia/internal/metadata"
	"github.com/scholia-dev/scholia/internal/segment"
)

// Library is one isolated knowledge base. A library exclusively owns its
// documents, chunks, embeddings, and lexical postings.
type Library struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one ingested source belonging to a library.
type Document struct {
	ID         string
	LibraryID  string
	Title      string
	MediaType  string // latex, markdown, text, pdf, url, ...
	SourcePath string
	Metadata   *metadata.DocumentMetadata
	AddedAt    time.Time
	IndexedAt  time.Time
}

// Chunk is one contiguous span of extracted text belonging to a document.
// A chunk never contains a torn protected block: math spans are restored
// intact before persistence.
type Chunk struct {
	ID           string // SHA256(documentID + content), content-addressed
	DocumentID   string
	LibraryID    string
	Index        int // 0-based ordinal within the document
	Content      string
	Type         segment.ChunkType
	Heading      string
	HeadingLevel int
	StartLine    int
	EndLine      int
	CreatedAt    time.Time
}

// EmbeddingStats summarizes embedding coverage for one library. Mixed models
// or dimensions within a library are a diagnostic fault, surfaced here.
type EmbeddingStats struct {
	WithEmbedding    int
	WithoutEmbedding int
	Models           map[string]int // model id -> vector count
	Dimensions       map[int]int    // dimensionality -> vector count
}

// Consistent reports whether every embedded vector in the library shares one
// model and one dimensionality.
func (s *EmbeddingStats) Consistent() bool {
	return len(s.Models) <= 1 && len(s.Dimensions) <= 1
}

// MetadataStore persists libraries, documents, chunks, and embeddings.
type MetadataStore interface {
	// Library operations
	SaveLibrary(ctx context.Context, lib *Library) error
	GetLibrary(ctx context.Context, id string) (*Library, error)
	GetLibraryByName(ctx context.Context, name string) (*Library, error)
	ListLibraries(ctx context.Context) ([]*Library, error)
	DeleteLibrary(ctx context.Context, id string) error // cascades to documents/chunks/embeddings

	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, libraryID string) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context, libraryID string) (int, error)

	// Chunk operations. ReplaceChunks swaps a document's chunk set in one
	// transaction so a reader never observes a partially indexed document.
	ReplaceChunks(ctx context.Context, documentID string, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error)
	GetChunksByLibrary(ctx context.Context, libraryID string) ([]*Chunk, error)
	GetAdjacentChunks(ctx context.Context, chunkID string, radius int) ([]*Chunk, error)
	CountChunks(ctx context.Context, libraryID string) (int, error)

	// Embedding operations
	SaveEmbeddings(ctx context.Context, chunkIDs []string, vectors [][]float32, model string) error
	GetAllEmbeddings(ctx context.Context, libraryID string) (map[string][]float32, error)
	GetEmbeddingStats(ctx context.Context, libraryID string) (*EmbeddingStats, error)
	ChunksWithoutEmbeddings(ctx context.Context, libraryID string) ([]*Chunk, error)

	// State operations (key-value runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// State keys recorded per data directory.
const (
	// StateKeyIndexModel stores the embedding model the vector indexes were built with.
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyIndexDimensions stores the embedding dimensionality of the vector indexes.
	StateKeyIndexDimensions = "index_embedding_dimensions"
)

// LexicalResult is a single lexical (BM25) search hit.
type LexicalResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// LexicalStats describes the lexical index.
type LexicalStats struct {
	DocumentCount int
}

// LexicalIndex provides keyword search over chunk content, BM25-scored.
type LexicalIndex interface {
	// Index adds or updates chunk postings.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching query, highest score first.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Delete removes postings by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Reset drops every posting, leaving an empty index ready for rebuild.
	Reset() error

	// AllIDs returns every indexed chunk ID, for consistency checks.
	AllIDs() ([]string, error)

	Stats() *LexicalStats
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ChunkID  string
	Distance float32 // lower is more similar; 0-2 for cosine
	Score    float32 // normalized similarity 0-1
}

// VectorIndex provides nearest-neighbor search over chunk embeddings.
type VectorIndex interface {
	// Add inserts vectors keyed by chunk ID. Existing IDs are replaced.
	Add(ctx context.Context, chunkIDs []string, vectors [][]float32) error

	// Search finds the k nearest neighbors of query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// AllIDs returns every live vector ID, for consistency checks.
	AllIDs() []string

	Contains(chunkID string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// LexicalConfig configures the lexical index analyzer.
type LexicalConfig struct {
	// StopWords are filtered out during analysis.
	StopWords []string
}

// DefaultLexicalConfig returns the scholarly-prose analyzer configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{StopWords: DefaultStopWords}
}

// DefaultStopWords are high-frequency words carrying no retrieval signal in
// scholarly prose.
var DefaultStopWords = []string{
	"a", "an", "the", "of", "in", "on", "at", "to", "for", "and", "or",
	"is", "are", "was", "were", "be", "been", "this", "that", "these",
	"those", "with", "from", "by", "as", "it", "its", "we", "our",
}

// VectorConfig configures the vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimensionality; uniform within a library.
	Dimensions int

	// Metric is "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is the HNSW max connections per layer.
	M int

	// EfSearch is the HNSW query-time search width.
	EfSearch int
}

// DefaultVectorConfig returns sensible HNSW defaults for the given
// dimensionality.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates a vector whose dimensionality does not match
// the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'scholia diagnose' and regenerate embeddings)", e.Expected, e.Got)
}
