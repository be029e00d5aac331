package generation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is not a valid cache key, so accounting and eviction never
// see the lock file.
const lockFileName = "lightbox.lock"

// ErrLocked indicates another process holds the batch lock.
var ErrLocked = errors.New("generation: another lightbox process is already generating into this cache")

// BatchLock serializes batch generation across processes with an advisory
// file lock inside the cache directory.
type BatchLock struct {
	lock *flock.Flock
}

// NewBatchLock builds a lock scoped to cacheDir.
func NewBatchLock(cacheDir string) *BatchLock {
	return &BatchLock{lock: flock.New(filepath.Join(cacheDir, lockFileName))}
}

// Acquire takes the lock without blocking, creating the cache directory
// when needed. Returns ErrLocked while a peer holds it.
func (b *BatchLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(b.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("generation: create cache directory: %w", err)
	}
	ok, err := b.lock.TryLock()
	if err != nil {
		return fmt.Errorf("generation: acquire cache lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Release drops the lock. Safe to call when it was never acquired.
func (b *BatchLock) Release() error {
	return b.lock.Unlock()
}

// Path returns the lock file location.
func (b *BatchLock) Path() string {
	return b.lock.Path()
}
