package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DirLock guards a data directory against concurrent writers. SQLite
// tolerates a second process, the bleve and HNSW files do not, so the CLI
// takes this lock before opening any index.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for the given data directory. The lock file
// lives at <dir>/.scholia.lock.
func NewDirLock(dir string) *DirLock {
	lockPath := filepath.Join(dir, ".scholia.lock")
	return &DirLock{path: lockPath, flock: flock.New(lockPath)}
}

// TryLock attempts to acquire the lock without blocking. Returns false when
// another process holds it.
func (l *DirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire data directory lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked DirLock.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release data directory lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *DirLock) Path() string {
	return l.path
}
