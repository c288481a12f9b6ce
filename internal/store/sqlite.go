package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/metadata"
	"github.com/scholia-dev/scholia/internal/segment"
)

// SQLiteStore implements MetadataStore on a single SQLite database.
// WAL mode allows concurrent readers alongside the single writer.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS libraries (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	library_id    TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	title         TEXT NOT NULL DEFAULT '',
	media_type    TEXT NOT NULL DEFAULT 'text',
	source_path   TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	added_at      TIMESTAMP NOT NULL,
	indexed_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_library ON documents(library_id);

CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	library_id    TEXT NOT NULL,
	ordinal       INTEGER NOT NULL,
	content       TEXT NOT NULL,
	chunk_type    TEXT NOT NULL DEFAULT 'paragraph',
	heading       TEXT NOT NULL DEFAULT '',
	heading_level INTEGER NOT NULL DEFAULT 0,
	start_line    INTEGER NOT NULL DEFAULT 0,
	end_line      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_chunks_library ON chunks(library_id);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id   TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	library_id TEXT NOT NULL,
	model      TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	vector     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_library ON embeddings(library_id);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const currentSchemaVersion = 1

// NewSQLiteStore opens (or creates) the metadata database at path. An empty
// path creates an in-memory database for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, scherr.ConfigError(fmt.Sprintf("cannot create data directory for %s", path), err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway and a pool of one
	// connection avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > currentSchemaVersion:
		return scherr.ConfigError(
			fmt.Sprintf("database schema version %d is newer than supported %d", version, currentSchemaVersion), nil)
	}

	return nil
}

func (s *SQLiteStore) guard() error {
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	return nil
}

// --- Libraries ---

func (s *SQLiteStore) SaveLibrary(ctx context.Context, lib *Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO libraries (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		lib.ID, lib.Name, lib.CreatedAt, lib.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save library %s: %w", lib.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLibrary(ctx context.Context, id string) (*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	return scanLibrary(s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM libraries WHERE id = ?", id))
}

func (s *SQLiteStore) GetLibraryByName(ctx context.Context, name string) (*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	return scanLibrary(s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM libraries WHERE name = ?", name))
}

func scanLibrary(row *sql.Row) (*Library, error) {
	var lib Library
	err := row.Scan(&lib.ID, &lib.Name, &lib.CreatedAt, &lib.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan library: %w", err)
	}
	return &lib, nil
}

func (s *SQLiteStore) ListLibraries(ctx context.Context) ([]*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, updated_at FROM libraries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []*Library
	for rows.Next() {
		var lib Library
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan library row: %w", err)
		}
		libs = append(libs, &lib)
	}
	return libs, rows.Err()
}

func (s *SQLiteStore) DeleteLibrary(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	// Cascades to documents, chunks, and embeddings.
	res, err := s.db.ExecContext(ctx, "DELETE FROM libraries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete library %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("library deleted", slog.String("library_id", id))
	}
	return nil
}

// --- Documents ---

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	metaJSON := "{}"
	if doc.Metadata != nil {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal document metadata: %w", err)
		}
		metaJSON = string(raw)
	}

	var indexedAt any
	if !doc.IndexedAt.IsZero() {
		indexedAt = doc.IndexedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, library_id, title, media_type, source_path, metadata_json, added_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			media_type = excluded.media_type,
			source_path = excluded.source_path,
			metadata_json = excluded.metadata_json,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.LibraryID, doc.Title, doc.MediaType, doc.SourcePath, metaJSON, doc.AddedAt, indexedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

const documentColumns = "id, library_id, title, media_type, source_path, metadata_json, added_at, indexed_at"

func scanDocument(scan func(dest ...any) error) (*Document, error) {
	var doc Document
	var metaJSON string
	var indexedAt sql.NullTime
	err := scan(&doc.ID, &doc.LibraryID, &doc.Title, &doc.MediaType,
		&doc.SourcePath, &metaJSON, &doc.AddedAt, &indexedAt)
	if err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		doc.IndexedAt = indexedAt.Time
	}
	doc.Metadata = &metadata.DocumentMetadata{}
	if err := json.Unmarshal([]byte(metaJSON), doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal document metadata: %w", err)
	}
	return &doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, libraryID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE library_id = ? ORDER BY added_at", libraryID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) CountDocuments(ctx context.Context, libraryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE library_id = ?", libraryID).Scan(&n)
	return n, err
}

// --- Chunks ---

// ReplaceChunks swaps a document's chunk set atomically. Existing chunks (and
// their embeddings, via cascade) are removed and the new set inserted in one
// transaction; a concurrent reader sees either the old set or the new one.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clear chunks for document %s: %w", documentID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, library_id, ordinal, content, chunk_type,
			heading, heading_level, start_line, end_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.LibraryID, c.Index,
			c.Content, string(c.Type), c.Heading, c.HeadingLevel, c.StartLine, c.EndLine, createdAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET indexed_at = ? WHERE id = ?", now, documentID); err != nil {
		return fmt.Errorf("mark document indexed: %w", err)
	}

	return tx.Commit()
}

const chunkColumns = "id, document_id, library_id, ordinal, content, chunk_type, heading, heading_level, start_line, end_line, created_at"

func scanChunk(scan func(dest ...any) error) (*Chunk, error) {
	var c Chunk
	var typ string
	err := scan(&c.ID, &c.DocumentID, &c.LibraryID, &c.Index, &c.Content, &typ,
		&c.Heading, &c.HeadingLevel, &c.StartLine, &c.EndLine, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = segment.ChunkType(typ)
	return &c, nil
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	chunk, err := scanChunk(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return chunk, err
}

func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's ordering; absent IDs are skipped.
	chunks := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (s *SQLiteStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	return s.queryChunks(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY ordinal", documentID)
}

func (s *SQLiteStore) GetChunksByLibrary(ctx context.Context, libraryID string) ([]*Chunk, error) {
	return s.queryChunks(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE library_id = ? ORDER BY document_id, ordinal", libraryID)
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetAdjacentChunks returns the chunks surrounding chunkID within radius
// ordinals in the same document, excluding the chunk itself, in ordinal order.
func (s *SQLiteStore) GetAdjacentChunks(ctx context.Context, chunkID string, radius int) ([]*Chunk, error) {
	if radius <= 0 {
		return nil, nil
	}

	anchor, err := s.GetChunk(ctx, chunkID)
	if err != nil || anchor == nil {
		return nil, err
	}

	return s.queryChunks(ctx,
		"SELECT "+chunkColumns+` FROM chunks
		 WHERE document_id = ? AND ordinal BETWEEN ? AND ? AND id != ?
		 ORDER BY ordinal`,
		anchor.DocumentID, anchor.Index-radius, anchor.Index+radius, chunkID)
}

func (s *SQLiteStore) CountChunks(ctx context.Context, libraryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE library_id = ?", libraryID).Scan(&n)
	return n, err
}

// --- Embeddings ---

func (s *SQLiteStore) SaveEmbeddings(ctx context.Context, chunkIDs []string, vectors [][]float32, model string) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("chunk IDs and vectors length mismatch: %d vs %d", len(chunkIDs), len(vectors))
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embedding transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, library_id, model, dimensions, vector)
		SELECT ?, library_id, ?, ?, ? FROM chunks WHERE id = ?
		ON CONFLICT(chunk_id) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id, model, len(vectors[i]), encodeVector(vectors[i]), id); err != nil {
			return fmt.Errorf("save embedding for chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context, libraryID string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, vector FROM embeddings WHERE library_id = ?", libraryID)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = decodeVector(blob)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetEmbeddingStats(ctx context.Context, libraryID string) (*EmbeddingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	stats := &EmbeddingStats{
		Models:     make(map[string]int),
		Dimensions: make(map[int]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(e.chunk_id),
			COUNT(*) - COUNT(e.chunk_id)
		FROM chunks c LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE c.library_id = ?`, libraryID).
		Scan(&stats.WithEmbedding, &stats.WithoutEmbedding)
	if err != nil {
		return nil, fmt.Errorf("embedding coverage: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, dimensions, COUNT(*) FROM embeddings
		WHERE library_id = ? GROUP BY model, dimensions`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("embedding models: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var dims, count int
		if err := rows.Scan(&model, &dims, &count); err != nil {
			return nil, err
		}
		stats.Models[model] += count
		stats.Dimensions[dims] += count
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) ChunksWithoutEmbeddings(ctx context.Context, libraryID string) ([]*Chunk, error) {
	return s.queryChunks(ctx,
		"SELECT "+chunkColumnsPrefixed+` FROM chunks c
		 LEFT JOIN embeddings e ON e.chunk_id = c.id
		 WHERE c.library_id = ? AND e.chunk_id IS NULL
		 ORDER BY c.document_id, c.ordinal`, libraryID)
}

const chunkColumnsPrefixed = "c.id, c.document_id, c.library_id, c.ordinal, c.content, c.chunk_type, c.heading, c.heading_level, c.start_line, c.end_line, c.created_at"

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// encodeVector packs a float32 slice into little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
