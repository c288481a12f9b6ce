// Package index keeps each library's lexical and vector indexes in lockstep
// with the chunk store, generates embeddings, and diagnoses drift between the
// three.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/store"
)

// Manager owns the per-library index pairs, opening them lazily and caching
// the handles. Index files live under <dataDir>/libraries/<id>/.
type Manager struct {
	dataDir string
	lexCfg  store.LexicalConfig
	logger  *slog.Logger

	mu         sync.Mutex
	dimensions int // 0 until the first embedding batch reveals it
	lexical    map[string]*store.BleveIndex
	vectors    map[string]*store.HNSWIndex
	closed     bool
}

// NewManager creates an index manager rooted at dataDir. dimensions may be 0
// when the embedding dimensionality is not yet known; vector indexes are then
// opened from their on-disk sidecar or deferred until the first batch.
func NewManager(dataDir string, dimensions int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dataDir:    dataDir,
		lexCfg:     store.DefaultLexicalConfig(),
		logger:     logger,
		dimensions: dimensions,
		lexical:    make(map[string]*store.BleveIndex),
		vectors:    make(map[string]*store.HNSWIndex),
	}
}

func (m *Manager) libraryDir(libraryID string) string {
	return filepath.Join(m.dataDir, "libraries", libraryID)
}

func (m *Manager) ftsPath(libraryID string) string {
	return filepath.Join(m.libraryDir(libraryID), "fts")
}

func (m *Manager) vectorPath(libraryID string) string {
	return filepath.Join(m.libraryDir(libraryID), "vectors.idx")
}

// LexicalIndex returns the library's FTS index, opening or creating it on
// first use.
func (m *Manager) LexicalIndex(_ context.Context, libraryID string) (store.LexicalIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, scherr.InternalError("index manager is closed", nil)
	}

	if idx, ok := m.lexical[libraryID]; ok {
		return idx, nil
	}

	path := m.ftsPath(libraryID)
	if m.dataDir == "" {
		path = "" // memory-only, for tests
	} else if err := os.MkdirAll(m.libraryDir(libraryID), 0o755); err != nil {
		return nil, fmt.Errorf("create library index dir: %w", err)
	}
	idx, err := store.NewBleveIndex(path, m.lexCfg)
	if err != nil {
		return nil, fmt.Errorf("open lexical index for library %s: %w", libraryID, err)
	}
	m.lexical[libraryID] = idx
	return idx, nil
}

// VectorIndex returns the library's vector index, or (nil, nil) when no
// vectors exist yet and the embedding dimensionality is still unknown.
func (m *Manager) VectorIndex(_ context.Context, libraryID string) (store.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.vectorIndexLocked(libraryID, 0)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		// A typed nil inside a non-nil interface would defeat callers'
		// nil checks.
		return nil, nil
	}
	return idx, nil
}

// vectorIndexLocked opens or creates the vector index. dims, when positive,
// fixes the dimensionality for a fresh index; otherwise the manager's known
// dimensionality or the on-disk sidecar decides.
func (m *Manager) vectorIndexLocked(libraryID string, dims int) (*store.HNSWIndex, error) {
	if m.closed {
		return nil, scherr.InternalError("index manager is closed", nil)
	}
	if idx, ok := m.vectors[libraryID]; ok {
		return idx, nil
	}

	path := m.vectorPath(libraryID)
	if dims <= 0 {
		dims = m.dimensions
	}
	if dims <= 0 && m.dataDir != "" {
		stored, err := store.StoredDimensions(path)
		if err != nil {
			return nil, fmt.Errorf("probe vector index for library %s: %w", libraryID, err)
		}
		dims = stored
	}
	if dims <= 0 {
		return nil, nil
	}

	idx, err := store.NewHNSWIndex(store.DefaultVectorConfig(dims))
	if err != nil {
		return nil, err
	}
	if m.dataDir != "" {
		if _, err := os.Stat(path); err == nil {
			if err := idx.Load(path); err != nil {
				m.logger.Warn("vector index unreadable, starting empty",
					"library", libraryID, "error", err)
			}
		}
	}

	m.dimensions = dims
	m.vectors[libraryID] = idx
	return idx, nil
}

// EnsureVectorIndex opens (or creates) the library's vector index with a now
// known dimensionality. Called by the embedding job once the first batch
// reveals the provider's output size.
func (m *Manager) EnsureVectorIndex(libraryID string, dims int) (store.VectorIndex, error) {
	if dims <= 0 {
		return nil, scherr.ValidationError("embedding dimensionality must be positive", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vectorIndexLocked(libraryID, dims)
}

// SaveVectors persists the library's vector index, if open.
func (m *Manager) SaveVectors(libraryID string) error {
	m.mu.Lock()
	idx, ok := m.vectors[libraryID]
	m.mu.Unlock()
	if !ok || m.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.libraryDir(libraryID), 0o755); err != nil {
		return fmt.Errorf("create library index dir: %w", err)
	}
	return idx.Save(m.vectorPath(libraryID))
}

// DeleteLibrary closes and removes the library's index files.
func (m *Manager) DeleteLibrary(libraryID string) error {
	m.mu.Lock()
	lex := m.lexical[libraryID]
	vec := m.vectors[libraryID]
	delete(m.lexical, libraryID)
	delete(m.vectors, libraryID)
	m.mu.Unlock()

	var errs []error
	if lex != nil {
		errs = append(errs, lex.Close())
	}
	if vec != nil {
		errs = append(errs, vec.Close())
	}
	if m.dataDir != "" {
		errs = append(errs, os.RemoveAll(m.libraryDir(libraryID)))
	}
	return errors.Join(errs...)
}

// Close persists open vector indexes and closes everything.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for id, vec := range m.vectors {
		if m.dataDir != "" {
			if err := vec.Save(m.vectorPath(id)); err != nil {
				errs = append(errs, fmt.Errorf("save vectors for library %s: %w", id, err))
			}
		}
		errs = append(errs, vec.Close())
	}
	for _, lex := range m.lexical {
		errs = append(errs, lex.Close())
	}
	m.lexical = map[string]*store.BleveIndex{}
	m.vectors = map[string]*store.HNSWIndex{}
	return errors.Join(errs...)
}
