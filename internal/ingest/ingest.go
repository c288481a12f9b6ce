// Package ingest turns source files and raw text into indexed documents:
// path validation, format detection, metadata extraction, segmentation, and
// handoff to the index coordinator.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/library"
	"github.com/scholia-dev/scholia/internal/metadata"
	"github.com/scholia-dev/scholia/internal/segment"
	"github.com/scholia-dev/scholia/internal/store"
)

// MaxDocumentSize bounds one source file. Scholarly sources are text; 50MB
// already means something went wrong.
const MaxDocumentSize int64 = 50 * 1024 * 1024

// Service ingests documents into libraries.
type Service struct {
	libs   *library.Manager
	coord  *index.Coordinator
	meta   store.MetadataStore
	logger *slog.Logger
}

// NewService wires the ingestion service.
func NewService(libs *library.Manager, coord *index.Coordinator, meta store.MetadataStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{libs: libs, coord: coord, meta: meta, logger: logger}
}

// AddDocumentRequest ingests one source file.
type AddDocumentRequest struct {
	LibraryID    string
	Path         string
	BibKey       string
	CitationText string

	// Metadata, when set, overrides extraction from the content.
	Metadata *metadata.DocumentMetadata

	// ProcessImmediately segments and indexes in this call; otherwise the
	// document is stored and picked up by a later processing run.
	ProcessImmediately bool
}

// AddTextRequest ingests raw text without a backing file.
type AddTextRequest struct {
	LibraryID    string
	Title        string
	MediaType    string // latex, markdown, or text
	Content      string
	BibKey       string
	CitationText string
	Metadata     *metadata.DocumentMetadata

	ProcessImmediately bool
}

// Result is the structured outcome handed back across the process boundary:
// failures are reported here, never as a panic or a bare error string.
type Result struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// ValidatePath rejects traversal attempts before any filesystem access.
// Both separator conventions are rejected regardless of platform: a path
// written for the other OS must not slip through.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return scherr.New(scherr.ErrCodeInvalidPath, "path is empty", nil)
	}
	if strings.Contains(path, "../") || strings.Contains(path, `..\`) {
		return scherr.New(scherr.ErrCodeInvalidPath,
			fmt.Sprintf("path %q contains a parent-directory traversal", path), nil)
	}
	return nil
}

// AddDocument ingests the file at req.Path into the library.
func (s *Service) AddDocument(ctx context.Context, req AddDocumentRequest) *Result {
	if err := ValidatePath(req.Path); err != nil {
		return failure(err)
	}
	if _, err := s.libs.Get(ctx, req.LibraryID); err != nil {
		return failure(err)
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return failure(scherr.New(scherr.ErrCodeInvalidPath,
			fmt.Sprintf("cannot read %s", req.Path), err))
	}
	if info.Size() > MaxDocumentSize {
		return failure(scherr.ValidationError(
			fmt.Sprintf("%s is %d bytes, above the %d byte limit", req.Path, info.Size(), MaxDocumentSize), nil))
	}

	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return failure(scherr.New(scherr.ErrCodeInvalidPath,
			fmt.Sprintf("cannot read %s", req.Path), err))
	}

	format := segment.FormatForExtension(strings.ToLower(filepath.Ext(req.Path)))
	title := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))

	return s.addContent(ctx, contentIngest{
		libraryID:    req.LibraryID,
		title:        title,
		sourcePath:   req.Path,
		mediaType:    string(format),
		content:      string(raw),
		bibKey:       req.BibKey,
		citationText: req.CitationText,
		meta:         req.Metadata,
		process:      req.ProcessImmediately,
	})
}

// AddText ingests raw text as a document.
func (s *Service) AddText(ctx context.Context, req AddTextRequest) *Result {
	if strings.TrimSpace(req.Content) == "" {
		return failure(scherr.ValidationError("document content is empty", nil))
	}
	if _, err := s.libs.Get(ctx, req.LibraryID); err != nil {
		return failure(err)
	}

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = string(segment.FormatText)
	}
	title := req.Title
	if title == "" {
		title = "untitled"
	}

	return s.addContent(ctx, contentIngest{
		libraryID:    req.LibraryID,
		title:        title,
		mediaType:    mediaType,
		content:      req.Content,
		bibKey:       req.BibKey,
		citationText: req.CitationText,
		meta:         req.Metadata,
		process:      req.ProcessImmediately,
	})
}

type contentIngest struct {
	libraryID    string
	title        string
	sourcePath   string
	mediaType    string
	content      string
	bibKey       string
	citationText string
	meta         *metadata.DocumentMetadata
	process      bool
}

func (s *Service) addContent(ctx context.Context, in contentIngest) *Result {
	format := formatForMediaType(in.mediaType)

	meta := in.meta
	if meta == nil {
		meta = metadata.Extract(in.content, format)
	}
	if in.bibKey != "" {
		meta.BibKey = in.bibKey
	}
	if in.citationText != "" {
		meta.CitationText = in.citationText
	}
	if meta.Title != "" {
		in.title = meta.Title
	}

	doc := &store.Document{
		ID:         uuid.NewString(),
		LibraryID:  in.libraryID,
		Title:      in.title,
		MediaType:  in.mediaType,
		SourcePath: in.sourcePath,
		Metadata:   meta,
		AddedAt:    time.Now().UTC(),
	}
	if err := s.meta.SaveDocument(ctx, doc); err != nil {
		return failure(err)
	}

	if !in.process {
		s.logger.Info("document stored for deferred processing",
			"document", doc.ID, "library", in.libraryID)
		return &Result{Success: true, DocumentID: doc.ID}
	}

	chunks, err := s.process(ctx, doc, in.content, format)
	if err != nil {
		return failure(err)
	}
	return &Result{Success: true, DocumentID: doc.ID, Chunks: chunks}
}

// Process segments and indexes a previously stored document whose content is
// supplied by the caller (deferred-processing path).
func (s *Service) Process(ctx context.Context, documentID, content string) (*Result, error) {
	doc, err := s.meta.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, scherr.ValidationError(
			fmt.Sprintf("document %s does not exist", documentID), nil)
	}
	if content == "" && doc.SourcePath != "" {
		raw, err := os.ReadFile(doc.SourcePath)
		if err != nil {
			return nil, scherr.New(scherr.ErrCodeInvalidPath,
				fmt.Sprintf("cannot re-read %s", doc.SourcePath), err)
		}
		content = string(raw)
	}

	chunks, err := s.process(ctx, doc, content, formatForMediaType(doc.MediaType))
	if err != nil {
		return failure(err), nil
	}
	return &Result{Success: true, DocumentID: doc.ID, Chunks: chunks}, nil
}

func (s *Service) process(ctx context.Context, doc *store.Document, content string, format segment.Format) (int, error) {
	jobCtx, release := s.libs.JobContext(ctx, doc.LibraryID)
	defer release()

	cfg := s.libs.Config()
	raw := segment.Segment(content, format, cfg.Chunking)

	now := time.Now().UTC()
	chunks := make([]*store.Chunk, len(raw))
	seen := make(map[string]int, len(raw))
	for i, rc := range raw {
		base := ChunkID(doc.ID, rc.Content)
		id := base
		// Identical content appearing twice in one document would collide;
		// salt repeats with their occurrence count.
		if n := seen[base]; n > 0 {
			id = ChunkID(doc.ID, fmt.Sprintf("%s\x00%d", rc.Content, n))
		}
		seen[base]++
		chunks[i] = &store.Chunk{
			ID:           id,
			DocumentID:   doc.ID,
			LibraryID:    doc.LibraryID,
			Index:        rc.Index,
			Content:      rc.Content,
			Type:         rc.Type,
			Heading:      rc.Heading,
			HeadingLevel: rc.HeadingLevel,
			StartLine:    rc.StartLine,
			EndLine:      rc.EndLine,
			CreatedAt:    now,
		}
	}

	if err := s.coord.IndexDocument(jobCtx, doc, chunks); err != nil {
		return 0, err
	}
	s.logger.Info("document processed",
		"document", doc.ID, "library", doc.LibraryID, "chunks", len(chunks))
	return len(chunks), nil
}

// ChunkID is content-addressed: the same text in the same document always
// maps to the same ID, so re-processing an unchanged document is a no-op for
// downstream embedding state.
func ChunkID(documentID, content string) string {
	sum := sha256.Sum256([]byte(documentID + content))
	return hex.EncodeToString(sum[:])
}

func formatForMediaType(mediaType string) segment.Format {
	switch mediaType {
	case string(segment.FormatLaTeX):
		return segment.FormatLaTeX
	case string(segment.FormatMarkdown):
		return segment.FormatMarkdown
	default:
		return segment.FormatText
	}
}
