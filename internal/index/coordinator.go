package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/embed"
	"github.com/scholia-dev/scholia/internal/store"
)

// DefaultEmbedConcurrency bounds how many embedding batches are in flight at
// once. Provider calls dominate indexing latency; a small amount of overlap
// hides round trips without hammering a local Ollama.
const DefaultEmbedConcurrency = 4

// Coordinator applies document chunk sets to the metadata store and the
// library's FTS index in lockstep, and runs the embedding backfill job.
type Coordinator struct {
	meta        store.MetadataStore
	indexes     *Manager
	embedder    embed.Embedder
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewCoordinator wires the coordinator. embedder may be nil; embedding
// generation is then unavailable but chunk/FTS indexing still works.
func NewCoordinator(meta store.MetadataStore, indexes *Manager, embedder embed.Embedder, cfg config.EmbeddingConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	return &Coordinator{
		meta:        meta,
		indexes:     indexes,
		embedder:    embedder,
		batchSize:   batchSize,
		concurrency: DefaultEmbedConcurrency,
		logger:      logger,
	}
}

// IndexDocument replaces a document's chunk set in the store and the FTS
// index. The store swap is one transaction; the FTS follows immediately, so a
// reader can only observe a chunk without its FTS record for the duration of
// this call. Stale vectors for removed chunks are dropped; new embeddings are
// generated by the backfill job.
func (c *Coordinator) IndexDocument(ctx context.Context, doc *store.Document, chunks []*store.Chunk) error {
	old, err := c.meta.GetChunksByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("load previous chunks: %w", err)
	}
	oldIDs := make([]string, len(old))
	for i, ch := range old {
		oldIDs[i] = ch.ID
	}

	if err := c.meta.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}

	lex, err := c.indexes.LexicalIndex(ctx, doc.LibraryID)
	if err != nil {
		return err
	}
	if len(oldIDs) > 0 {
		if err := lex.Delete(ctx, oldIDs); err != nil {
			return fmt.Errorf("drop stale fts records: %w", err)
		}
	}
	if err := lex.Index(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	if len(oldIDs) > 0 {
		vec, err := c.indexes.VectorIndex(ctx, doc.LibraryID)
		if err != nil {
			return err
		}
		if vec != nil {
			if err := vec.Delete(ctx, oldIDs); err != nil {
				return fmt.Errorf("drop stale vectors: %w", err)
			}
		}
	}

	c.logger.Debug("document indexed",
		"document", doc.ID, "library", doc.LibraryID,
		"chunks", len(chunks), "replaced", len(oldIDs))
	return nil
}

// RemoveDocument deletes a document and its chunks from the store, the FTS
// index, and the vector index.
func (c *Coordinator) RemoveDocument(ctx context.Context, documentID string) error {
	doc, err := c.meta.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	old, err := c.meta.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	ids := make([]string, len(old))
	for i, ch := range old {
		ids[i] = ch.ID
	}

	if err := c.meta.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	lex, err := c.indexes.LexicalIndex(ctx, doc.LibraryID)
	if err != nil {
		return err
	}
	if err := lex.Delete(ctx, ids); err != nil {
		return err
	}
	vec, err := c.indexes.VectorIndex(ctx, doc.LibraryID)
	if err != nil {
		return err
	}
	if vec != nil {
		return vec.Delete(ctx, ids)
	}
	return nil
}

// GenerateEmbeddings embeds every chunk currently missing an embedding, for
// one library or all of them. It is idempotent: a second consecutive run with
// no new chunks processes zero. Failed batches are counted and skipped rather
// than aborting the job; ctx cancellation (library deletion, shutdown) stops
// it between batches.
func (c *Coordinator) GenerateEmbeddings(ctx context.Context, libraryID string) (processed, failed int, err error) {
	if c.embedder == nil {
		return 0, 0, fmt.Errorf("no embedding provider configured")
	}

	var libIDs []string
	if libraryID != "" {
		libIDs = []string{libraryID}
	} else {
		libs, err := c.meta.ListLibraries(ctx)
		if err != nil {
			return 0, 0, err
		}
		for _, lib := range libs {
			libIDs = append(libIDs, lib.ID)
		}
	}

	for _, id := range libIDs {
		p, f, err := c.generateForLibrary(ctx, id)
		processed += p
		failed += f
		if err != nil {
			return processed, failed, err
		}
	}
	return processed, failed, nil
}

func (c *Coordinator) generateForLibrary(ctx context.Context, libraryID string) (int, int, error) {
	pending, err := c.meta.ChunksWithoutEmbeddings(ctx, libraryID)
	if err != nil {
		return 0, 0, err
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	var (
		mu        sync.Mutex
		processed int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(pending); start += c.batchSize {
		if gctx.Err() != nil {
			break
		}
		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			ids := make([]string, len(batch))
			for i, ch := range batch {
				texts[i] = ch.Content
				ids[i] = ch.ID
			}

			vectors, err := c.embedder.EmbedBatch(gctx, texts)
			if err == nil && len(vectors) != len(batch) {
				err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
			}
			if err != nil {
				c.logger.Warn("embedding batch failed",
					"library", libraryID, "chunks", len(batch), "error", err)
				mu.Lock()
				failed += len(batch)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if err := c.meta.SaveEmbeddings(gctx, ids, vectors, c.embedder.ModelName()); err != nil {
				return fmt.Errorf("save embeddings: %w", err)
			}
			vec, err := c.indexes.EnsureVectorIndex(libraryID, len(vectors[0]))
			if err != nil {
				return err
			}
			if err := vec.Add(gctx, ids, vectors); err != nil {
				return fmt.Errorf("add vectors: %w", err)
			}
			processed += len(batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return processed, failed, err
	}
	if err := ctx.Err(); err != nil {
		return processed, failed, err
	}

	if processed > 0 {
		if err := c.indexes.SaveVectors(libraryID); err != nil {
			c.logger.Warn("persisting vector index failed", "library", libraryID, "error", err)
		}
		if err := c.recordIndexState(ctx); err != nil {
			c.logger.Warn("recording index state failed", "error", err)
		}
	}

	c.logger.Info("embedding backfill finished",
		"library", libraryID, "processed", processed, "failed", failed)
	return processed, failed, nil
}

// recordIndexState remembers which model and dimensionality the vector
// indexes were built with, so a later provider switch is detectable.
func (c *Coordinator) recordIndexState(ctx context.Context) error {
	if err := c.meta.SetState(ctx, store.StateKeyIndexModel, c.embedder.ModelName()); err != nil {
		return err
	}
	return c.meta.SetState(ctx, store.StateKeyIndexDimensions,
		strconv.Itoa(c.embedder.Dimensions()))
}
