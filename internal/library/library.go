// Package library manages the lifecycle of libraries: named, isolated
// knowledge bases that own their documents, chunks, embeddings, and indexes.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/store"
)

// Manager creates, lists, and deletes libraries, hands out the current
// configuration snapshot, and tracks in-flight background jobs so deleting a
// library cancels its work.
type Manager struct {
	meta    store.MetadataStore
	indexes *index.Manager
	logger  *slog.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	jobMu   sync.Mutex
	jobs    map[string]map[uint64]context.CancelFunc
	nextJob uint64
}

// NewManager wires the library manager.
func NewManager(meta store.MetadataStore, indexes *index.Manager, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Manager{
		meta:    meta,
		indexes: indexes,
		logger:  logger,
		cfg:     cfg,
		jobs:    make(map[string]map[uint64]context.CancelFunc),
	}
}

// Create makes a new empty library. Names are unique.
func (m *Manager) Create(ctx context.Context, name string) (*store.Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, scherr.ValidationError("library name is empty", nil)
	}

	existing, err := m.meta.GetLibraryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, scherr.ValidationError(
			fmt.Sprintf("library %q already exists", name), nil)
	}

	now := time.Now().UTC()
	lib := &store.Library{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.meta.SaveLibrary(ctx, lib); err != nil {
		return nil, err
	}
	m.logger.Info("library created", "library", lib.ID, "name", name)
	return lib, nil
}

// Get returns the library by ID.
func (m *Manager) Get(ctx context.Context, id string) (*store.Library, error) {
	lib, err := m.meta.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	if lib == nil {
		return nil, scherr.New(scherr.ErrCodeLibraryNotFound,
			fmt.Sprintf("library %s does not exist", id), nil)
	}
	return lib, nil
}

// GetByName returns the library by its unique name.
func (m *Manager) GetByName(ctx context.Context, name string) (*store.Library, error) {
	lib, err := m.meta.GetLibraryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if lib == nil {
		return nil, scherr.New(scherr.ErrCodeLibraryNotFound,
			fmt.Sprintf("library %q does not exist", name), nil)
	}
	return lib, nil
}

// List returns all libraries.
func (m *Manager) List(ctx context.Context) ([]*store.Library, error) {
	return m.meta.ListLibraries(ctx)
}

// Rename changes a library's name, keeping uniqueness.
func (m *Manager) Rename(ctx context.Context, id, name string) (*store.Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, scherr.ValidationError("library name is empty", nil)
	}
	taken, err := m.meta.GetLibraryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if taken != nil && taken.ID != id {
		return nil, scherr.ValidationError(
			fmt.Sprintf("library %q already exists", name), nil)
	}

	lib, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lib.Name = name
	lib.UpdatedAt = time.Now().UTC()
	if err := m.meta.SaveLibrary(ctx, lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// Delete cancels the library's in-flight jobs, removes its index files, and
// cascades the store rows (documents, chunks, embeddings).
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	m.cancelJobs(id)

	if err := m.indexes.DeleteLibrary(id); err != nil {
		m.logger.Warn("removing library indexes failed", "library", id, "error", err)
	}
	if err := m.meta.DeleteLibrary(ctx, id); err != nil {
		return err
	}
	m.logger.Info("library deleted", "library", id)
	return nil
}

// Config returns the current configuration snapshot. Readers observe either
// the old or the new configuration atomically, never a partial update.
func (m *Manager) Config() *config.Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// UpdateConfig swaps in a new configuration snapshot.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	m.logger.Info("configuration updated")
}

// JobContext derives a context for a background job (indexing, embedding
// backfill) owned by the library. Deleting the library cancels every context
// issued for it, abandoning in-flight provider calls.
func (m *Manager) JobContext(ctx context.Context, libraryID string) (context.Context, context.CancelFunc) {
	jobCtx, cancel := context.WithCancel(ctx)

	m.jobMu.Lock()
	id := m.nextJob
	m.nextJob++
	if m.jobs[libraryID] == nil {
		m.jobs[libraryID] = make(map[uint64]context.CancelFunc)
	}
	m.jobs[libraryID][id] = cancel
	m.jobMu.Unlock()

	return jobCtx, func() {
		cancel()
		m.jobMu.Lock()
		if set, ok := m.jobs[libraryID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(m.jobs, libraryID)
			}
		}
		m.jobMu.Unlock()
	}
}

func (m *Manager) cancelJobs(libraryID string) {
	m.jobMu.Lock()
	cancels := m.jobs[libraryID]
	delete(m.jobs, libraryID)
	m.jobMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		m.logger.Info("cancelled in-flight jobs", "library", libraryID, "jobs", len(cancels))
	}
}
