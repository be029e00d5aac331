// Package quota owns cache-size accounting and eviction for the thumbnail
// cache directory. Only record files (32-hex names) are counted; temp files
// and foreign files are invisible to accounting, so a concurrent writer can
// never be double-counted mid-commit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"lightbox/internal/fingerprint"
	"lightbox/internal/logging"
)

// freeSpaceFloor is the minimum free-space ratio the cache volume must
// keep; eviction continues below it even when the byte budget is met.
const freeSpaceFloor = 0.20

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager tracks the cache directory's total size lazily and evicts the
// oldest records when the budget or the free-space floor is violated.
// Safe for concurrent use by multiple writers.
type Manager struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	statfs   statfsFunc

	mu    sync.Mutex
	total int64
	dirty bool
}

// Stats describes current cache usage for the CLI.
type Stats struct {
	Records      int       `json:"records"`
	TotalBytes   int64     `json:"total_bytes"`
	MaxBytes     int64     `json:"max_bytes"`
	FreeBytes    uint64    `json:"free_bytes"`
	TotalFSBytes uint64    `json:"total_fs_bytes"`
	FreeRatio    float64   `json:"free_ratio"`
	OldestAt     time.Time `json:"oldest_at"`
	NewestAt     time.Time `json:"newest_at"`
}

// NewManager builds a quota manager over the cache directory. maxBytes of
// zero means caching is disabled; the manager still answers queries so the
// store can observe the disabled state.
func NewManager(dir string, maxBytes int64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "quota"),
		statfs:   realStatfs,
		dirty:    true,
	}
}

// MaxBytes returns the configured budget. Zero disables caching.
func (m *Manager) MaxBytes() int64 { return m.maxBytes }

// MarkDirty flags the cached total as stale so the next TotalBytes call
// rescans the directory instead of trusting the cached figure.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// TotalBytes returns the summed size of all record files, recomputing
// lazily after MarkDirty.
func (m *Manager) TotalBytes(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return m.total, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, total, err := m.scan()
	if err != nil {
		return 0, err
	}
	m.total = total
	m.dirty = false
	return total, nil
}

// EvictOldest removes records oldest-modification-first until the total
// fits the budget and the volume keeps the free-space floor. The refreshed
// total replaces the cached figure.
func (m *Manager) EvictOldest(ctx context.Context) error {
	if m.maxBytes <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	records, total, err := m.scan()
	if err != nil {
		return err
	}
	for len(records) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		freeOK, err := m.freeSpaceOK()
		if err != nil {
			return err
		}
		if total <= m.maxBytes && freeOK {
			break
		}
		oldest := records[0]
		if err := os.Remove(oldest.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("quota: evict %q: %w", oldest.path, err)
		}
		m.logger.Info("evicted record",
			logging.String("path", oldest.path),
			logging.Int64("record_size", oldest.size),
			logging.Time("modified_at", oldest.modTime))
		total -= oldest.size
		records = records[1:]
	}
	m.total = total
	m.dirty = false
	return nil
}

// Stats snapshots cache usage and filesystem free space.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	records, total, err := m.scan()
	if err != nil {
		return Stats{}, err
	}
	totalFS, freeFS, err := m.statfs(m.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("quota: statfs: %w", err)
	}
	ratio := 1.0
	if totalFS > 0 {
		ratio = float64(freeFS) / float64(totalFS)
	}

	stats := Stats{
		Records:      len(records),
		TotalBytes:   total,
		MaxBytes:     m.maxBytes,
		FreeBytes:    freeFS,
		TotalFSBytes: totalFS,
		FreeRatio:    ratio,
	}
	if len(records) > 0 {
		stats.OldestAt = records[0].modTime
		stats.NewestAt = records[len(records)-1].modTime
	}

	m.total = total
	m.dirty = false
	return stats, nil
}

type record struct {
	path    string
	size    int64
	modTime time.Time
}

// scan lists record files sorted oldest-modification-first. Files whose
// names are not valid cache keys are ignored. Per-file stat failures are
// logged and skipped so one bad entry never blocks accounting.
func (m *Manager) scan() ([]record, int64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("quota: list cache directory: %w", err)
	}

	records := make([]record, 0, len(entries))
	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, err := fingerprint.ParseKey(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logging.WarnWithContext(m.logger, "skipping unreadable record", "quota_entry_skipped",
				logging.String("path", filepath.Join(m.dir, entry.Name())),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions"),
				logging.String(logging.FieldImpact, "record excluded from accounting and eviction"))
			continue
		}
		records = append(records, record{
			path:    filepath.Join(m.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].modTime.Before(records[j].modTime)
	})
	return records, total, nil
}

func (m *Manager) freeSpaceOK() (bool, error) {
	total, free, err := m.statfs(m.dir)
	if err != nil {
		return false, fmt.Errorf("quota: statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
