package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/store"
)

// LibraryReport is the health summary for one library.
type LibraryReport struct {
	LibraryID         string         `json:"library_id"`
	Name              string         `json:"name"`
	Documents         int            `json:"documents"`
	Chunks            int            `json:"chunks"`
	Embeddings        int            `json:"embeddings"`
	MissingEmbeddings int            `json:"missing_embeddings"`
	FTSRecords        int            `json:"fts_records"`
	VectorRecords     int            `json:"vector_records"`
	Dimensions        []int          `json:"dimensions,omitempty"`
	Models            map[string]int `json:"models,omitempty"`
	Consistent        bool           `json:"consistent"`
	Issues            []string       `json:"issues,omitempty"`
}

// Report aggregates index health across libraries.
type Report struct {
	TotalChunks         int             `json:"total_chunks"`
	TotalEmbeddings     int             `json:"total_embeddings"`
	FTSRecords          int             `json:"fts_records"`
	EmbeddingDimensions []int           `json:"embedding_dimensions,omitempty"`
	Libraries           []LibraryReport `json:"libraries"`
}

// DiagnosticsService inspects chunk/FTS/embedding alignment. Diagnose is
// strictly read-only; the repair actions are separate, explicit calls.
type DiagnosticsService struct {
	meta    store.MetadataStore
	indexes *Manager
	logger  *slog.Logger
}

// NewDiagnosticsService wires the diagnostics service.
func NewDiagnosticsService(meta store.MetadataStore, indexes *Manager, logger *slog.Logger) *DiagnosticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosticsService{meta: meta, indexes: indexes, logger: logger}
}

// Diagnose reports index health for one library, or all libraries when
// libraryID is empty. Inconsistencies are described, never repaired here.
func (d *DiagnosticsService) Diagnose(ctx context.Context, libraryID string) (*Report, error) {
	var libs []*store.Library
	if libraryID != "" {
		lib, err := d.meta.GetLibrary(ctx, libraryID)
		if err != nil {
			return nil, err
		}
		if lib == nil {
			return nil, scherr.New(scherr.ErrCodeLibraryNotFound,
				fmt.Sprintf("library %s does not exist", libraryID), nil)
		}
		libs = []*store.Library{lib}
	} else {
		all, err := d.meta.ListLibraries(ctx)
		if err != nil {
			return nil, err
		}
		libs = all
	}

	report := &Report{Libraries: make([]LibraryReport, 0, len(libs))}
	dimSet := make(map[int]struct{})

	for _, lib := range libs {
		lr, err := d.diagnoseLibrary(ctx, lib)
		if err != nil {
			return nil, err
		}
		report.TotalChunks += lr.Chunks
		report.TotalEmbeddings += lr.Embeddings
		report.FTSRecords += lr.FTSRecords
		for _, dim := range lr.Dimensions {
			dimSet[dim] = struct{}{}
		}
		report.Libraries = append(report.Libraries, *lr)
	}

	for dim := range dimSet {
		report.EmbeddingDimensions = append(report.EmbeddingDimensions, dim)
	}
	sort.Ints(report.EmbeddingDimensions)
	return report, nil
}

func (d *DiagnosticsService) diagnoseLibrary(ctx context.Context, lib *store.Library) (*LibraryReport, error) {
	lr := &LibraryReport{LibraryID: lib.ID, Name: lib.Name, Consistent: true}

	var err error
	if lr.Documents, err = d.meta.CountDocuments(ctx, lib.ID); err != nil {
		return nil, err
	}
	if lr.Chunks, err = d.meta.CountChunks(ctx, lib.ID); err != nil {
		return nil, err
	}

	stats, err := d.meta.GetEmbeddingStats(ctx, lib.ID)
	if err != nil {
		return nil, err
	}
	lr.Embeddings = stats.WithEmbedding
	lr.MissingEmbeddings = stats.WithoutEmbedding
	lr.Models = stats.Models
	for dim := range stats.Dimensions {
		lr.Dimensions = append(lr.Dimensions, dim)
	}
	sort.Ints(lr.Dimensions)

	lex, err := d.indexes.LexicalIndex(ctx, lib.ID)
	if err != nil {
		return nil, err
	}
	lr.FTSRecords = lex.Stats().DocumentCount

	vec, err := d.indexes.VectorIndex(ctx, lib.ID)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		lr.VectorRecords = vec.Count()
	}

	if lr.FTSRecords != lr.Chunks {
		lr.Consistent = false
		lr.Issues = append(lr.Issues, fmt.Sprintf(
			"fts has %d records for %d chunks; run rebuild-fts", lr.FTSRecords, lr.Chunks))
	}
	if lr.MissingEmbeddings > 0 {
		lr.Issues = append(lr.Issues, fmt.Sprintf(
			"%d chunks have no embedding; run generate-embeddings", lr.MissingEmbeddings))
	}
	if vec != nil && lr.VectorRecords != lr.Embeddings {
		lr.Consistent = false
		lr.Issues = append(lr.Issues, fmt.Sprintf(
			"vector index holds %d vectors for %d stored embeddings", lr.VectorRecords, lr.Embeddings))
	}
	if !stats.Consistent() {
		lr.Consistent = false
		lr.Issues = append(lr.Issues,
			"mixed embedding models or dimensionalities; regenerate embeddings with one provider")
	}
	return lr, nil
}

// RebuildFTS drops and regenerates every library's FTS index from the chunk
// table, returning the number of records written. This is the repair path for
// chunk/FTS drift.
func (d *DiagnosticsService) RebuildFTS(ctx context.Context) (int, error) {
	libs, err := d.meta.ListLibraries(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, lib := range libs {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		lex, err := d.indexes.LexicalIndex(ctx, lib.ID)
		if err != nil {
			return total, err
		}
		if err := lex.Reset(); err != nil {
			return total, fmt.Errorf("reset fts for library %s: %w", lib.ID, err)
		}

		chunks, err := d.meta.GetChunksByLibrary(ctx, lib.ID)
		if err != nil {
			return total, err
		}
		if len(chunks) == 0 {
			continue
		}
		if err := lex.Index(ctx, chunks); err != nil {
			return total, fmt.Errorf("reindex library %s: %w", lib.ID, err)
		}
		total += len(chunks)
		d.logger.Info("fts rebuilt", "library", lib.ID, "records", len(chunks))
	}
	return total, nil
}
