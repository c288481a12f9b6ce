package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/library"
	"github.com/scholia-dev/scholia/internal/metadata"
	"github.com/scholia-dev/scholia/internal/store"
)

func newTestService(t *testing.T) (*Service, *library.Manager, store.MetadataStore, *index.Manager) {
	t.Helper()
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	indexes := index.NewManager("", 0, nil)
	t.Cleanup(func() { indexes.Close() })

	libs := library.NewManager(meta, indexes, config.Default(), nil)
	coord := index.NewCoordinator(meta, indexes, nil, config.EmbeddingConfig{}, nil)
	return NewService(libs, coord, meta, nil), libs, meta, indexes
}

func TestValidatePath_RejectsTraversalOnBothSeparators(t *testing.T) {
	for _, path := range []string{
		"../etc/passwd",
		"papers/../../secret.tex",
		`..\windows\system32`,
		`papers\..\..\secret.tex`,
	} {
		err := ValidatePath(path)
		require.Error(t, err, "path %q", path)
	}

	assert.NoError(t, ValidatePath("papers/attention.tex"))
	assert.NoError(t, ValidatePath("notes.with..dots.md"))
}

func TestAddDocument_TraversalRejectedBeforeIO(t *testing.T) {
	svc, libs, _, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "papers")
	require.NoError(t, err)

	res := svc.AddDocument(ctx, AddDocumentRequest{
		LibraryID: lib.ID,
		Path:      "../outside.tex",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "traversal")
}

func TestAddDocument_IngestsAndIndexesLaTeX(t *testing.T) {
	svc, libs, meta, indexes := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "papers")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "paper.tex")
	content := `\title{Spectral Graph Methods}
\author{Ada Lovelace}
\begin{document}
\section{Introduction}
Spectral methods analyze graph Laplacians.
\section{Results}
Eigenvalue bounds follow from interlacing.
\end{document}`
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	res := svc.AddDocument(ctx, AddDocumentRequest{
		LibraryID:          lib.ID,
		Path:               src,
		BibKey:             "lovelace2024spectral",
		ProcessImmediately: true,
	})
	require.True(t, res.Success, res.Error)
	assert.Greater(t, res.Chunks, 0)

	doc, err := meta.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Spectral Graph Methods", doc.Title)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, "lovelace2024spectral", doc.Metadata.BibKey)
	assert.Equal(t, []string{"Ada Lovelace"}, doc.Metadata.Authors)

	// Chunks and FTS are in lockstep after immediate processing.
	chunkCount, err := meta.CountChunks(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Chunks, chunkCount)

	lex, err := indexes.LexicalIndex(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, chunkCount, lex.Stats().DocumentCount)

	hits, err := lex.Search(ctx, "Laplacians", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestAddDocument_DeferredProcessing(t *testing.T) {
	svc, libs, meta, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "papers")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(src, []byte("# Notes\n\nSome content."), 0o644))

	res := svc.AddDocument(ctx, AddDocumentRequest{LibraryID: lib.ID, Path: src})
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.Chunks)

	count, err := meta.CountChunks(ctx, lib.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Processing later picks the content back up from the source path.
	processed, err := svc.Process(ctx, res.DocumentID, "")
	require.NoError(t, err)
	require.True(t, processed.Success, processed.Error)
	assert.Greater(t, processed.Chunks, 0)

	count, err = meta.CountChunks(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, processed.Chunks, count)
}

func TestAddText_FrontMatterAndPassThroughFields(t *testing.T) {
	svc, libs, meta, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "notes")
	require.NoError(t, err)

	res := svc.AddText(ctx, AddTextRequest{
		LibraryID:          lib.ID,
		MediaType:          "markdown",
		Content:            "---\ntitle: Reading Notes\nauthor: Grace Hopper\n---\n\n# Summary\n\nCompilers translate programs.",
		CitationText:       "Hopper, G. Reading Notes.",
		ProcessImmediately: true,
	})
	require.True(t, res.Success, res.Error)

	doc, err := meta.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Reading Notes", doc.Title)
	assert.Equal(t, "Hopper, G. Reading Notes.", doc.Metadata.CitationText)
}

func TestAddText_ExplicitMetadataOverridesExtraction(t *testing.T) {
	svc, libs, meta, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "notes")
	require.NoError(t, err)

	res := svc.AddText(ctx, AddTextRequest{
		LibraryID: lib.ID,
		MediaType: "text",
		Content:   "plain body",
		Metadata:  &metadata.DocumentMetadata{Title: "Supplied Title", Year: 2021},
	})
	require.True(t, res.Success, res.Error)

	doc, err := meta.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Supplied Title", doc.Title)
	assert.Equal(t, 2021, doc.Metadata.Year)
}

func TestAddText_EmptyContentFails(t *testing.T) {
	svc, libs, _, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "notes")
	require.NoError(t, err)

	res := svc.AddText(ctx, AddTextRequest{LibraryID: lib.ID, Content: "  "})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestAddDocument_UnknownLibraryFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	res := svc.AddDocument(context.Background(), AddDocumentRequest{
		LibraryID: "missing", Path: "somefile.txt",
	})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestChunkID_IsContentAddressed(t *testing.T) {
	a := ChunkID("doc-1", "same content")
	b := ChunkID("doc-1", "same content")
	c := ChunkID("doc-2", "same content")
	d := ChunkID("doc-1", "other content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestReprocessing_SameContentKeepsChunkIDs(t *testing.T) {
	svc, libs, meta, _ := newTestService(t)
	ctx := context.Background()
	lib, err := libs.Create(ctx, "papers")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "stable.md")
	require.NoError(t, os.WriteFile(src, []byte("# Stable\n\nUnchanged text."), 0o644))

	res := svc.AddDocument(ctx, AddDocumentRequest{
		LibraryID: lib.ID, Path: src, ProcessImmediately: true,
	})
	require.True(t, res.Success, res.Error)

	before, err := meta.GetChunksByDocument(ctx, res.DocumentID)
	require.NoError(t, err)

	_, err = svc.Process(ctx, res.DocumentID, "")
	require.NoError(t, err)

	after, err := meta.GetChunksByDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}
