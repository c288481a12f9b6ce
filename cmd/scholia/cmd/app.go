package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/library"
	"github.com/scholia-dev/scholia/internal/store"
)

// app holds the wired storage and service layer shared by the commands.
// Commands open it, do their work, and close it; nothing outlives a single
// CLI invocation.
type app struct {
	cfg     *config.Config
	meta    store.MetadataStore
	indexes *index.Manager
	libs    *library.Manager
	lock    *store.DirLock
	logger  *slog.Logger
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(config.DefaultPath()); err == nil {
			path = config.DefaultPath()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}

// openApp wires stores and services against the configured data directory,
// taking the cross-process lock first.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	lock := store.NewDirLock(cfg.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("another scholia process is using %s", cfg.DataDir)
	}

	logger := slog.Default()

	meta, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "metadata.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	indexes := index.NewManager(cfg.DataDir, cfg.Embedding.Dimensions, logger)
	libs := library.NewManager(meta, indexes, cfg, logger)

	return &app{
		cfg:     cfg,
		meta:    meta,
		indexes: indexes,
		libs:    libs,
		lock:    lock,
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.indexes.Close(); err != nil {
		a.logger.Warn("closing indexes", "error", err)
	}
	if err := a.meta.Close(); err != nil {
		a.logger.Warn("closing metadata store", "error", err)
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("releasing data directory lock", "error", err)
	}
}

// resolveLibrary accepts either a library name or an ID.
func (a *app) resolveLibrary(ctx context.Context, nameOrID string) (*store.Library, error) {
	lib, err := a.libs.GetByName(ctx, nameOrID)
	if err == nil {
		return lib, nil
	}
	if scherr.GetCode(err) != scherr.ErrCodeLibraryNotFound {
		return nil, err
	}
	return a.libs.Get(ctx, nameOrID)
}
