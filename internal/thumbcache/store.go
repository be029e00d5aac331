package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lightbox/internal/fingerprint"
	"lightbox/internal/logging"
)

// Thumbnail pairs a decoded frame with its presentation time in seconds.
type Thumbnail struct {
	RealTime float64
	Image    image.Image
}

// SourceMeta captures the source video's file attributes at caching time.
type SourceMeta struct {
	Size    int64
	ModTime time.Time
}

// Quota is the collaborator owning cache-size accounting and eviction.
// Implementations must be safe for concurrent use: multiple writers may
// query and trigger eviction at once. A zero MaxBytes disables caching.
type Quota interface {
	MaxBytes() int64
	TotalBytes(ctx context.Context) (int64, error)
	EvictOldest(ctx context.Context) error
	MarkDirty()
}

// Store maps fingerprint keys to record files in a single cache directory.
type Store struct {
	dir    string
	quota  Quota
	logger *slog.Logger
}

// New creates a Store over dir. A nil quota leaves the cache unbounded;
// a nil logger discards log output.
func New(dir string, quota Quota, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		dir:    dir,
		quota:  quota,
		logger: logging.NewComponentLogger(logger, "thumbcache"),
	}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the record filename for key.
func (s *Store) Path(key fingerprint.Key) string {
	return filepath.Join(s.dir, key.String())
}

// Exists reports whether a record file for key is present.
func (s *Store) Exists(key fingerprint.Key) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Valid reports whether the record exists and can be opened for reading.
// It does not validate internal structure; corruption is only discovered
// by Read.
func (s *Store) Valid(key fingerprint.Key) bool {
	if !s.Exists(key) {
		return false
	}
	file, err := os.Open(s.Path(key))
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// Write persists thumbs under key, in caller order. The record is built in
// a uniquely named temp file and renamed into place, so readers never see
// a partial record. When the quota budget is zero the write is a silent
// no-op. Two processes writing the same key concurrently race on the final
// rename; either complete record winning is acceptable because identical
// content produced both.
func (s *Store) Write(ctx context.Context, key fingerprint.Key, thumbs []Thumbnail, meta SourceMeta) error {
	if s.quota != nil {
		if s.quota.MaxBytes() == 0 {
			s.logger.Debug("caching disabled, write skipped",
				logging.String(logging.FieldCacheKey, key.String()))
			return nil
		}
		s.ensureBudget(ctx)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create cache directory: %w", ErrCreate, err)
	}

	tempPath := filepath.Join(s.dir, fmt.Sprintf("%s.tmp-%s", key, uuid.NewString()))
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create temp record: %w", ErrCreate, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		file.Close()
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "failed to remove temp record", "temp_cleanup_failed",
				logging.String("path", tempPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually or run cache prune"),
				logging.String(logging.FieldImpact, "stale temp file occupies disk space"))
		}
	}()

	if _, err := file.Write(encodeHeader(meta)); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrCreate, err)
	}

	for i, thumb := range thumbs {
		block, err := encodeBlock(thumb)
		if err != nil {
			return fmt.Errorf("%w: thumbnail %d: %w", ErrEncode, i, err)
		}
		if _, err := file.Write(block); err != nil {
			return fmt.Errorf("%w: write block %d: %w", ErrCreate, i, err)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp record: %w", ErrCreate, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close temp record: %w", ErrCreate, err)
	}
	if err := os.Rename(tempPath, s.Path(key)); err != nil {
		return fmt.Errorf("%w: commit record: %w", ErrCreate, err)
	}
	committed = true

	if s.quota != nil {
		s.quota.MarkDirty()
	}

	s.logger.Debug("record written",
		logging.String(logging.FieldCacheKey, key.String()),
		logging.Int("thumbnails", len(thumbs)),
		logging.Int64("source_size", meta.Size))
	return nil
}

// ensureBudget asks the quota collaborator to evict when the cache has
// outgrown its budget. Accounting and eviction failures are logged, not
// escalated: the write itself is still correct and the budget is enforced
// again on the next write.
func (s *Store) ensureBudget(ctx context.Context) {
	max := s.quota.MaxBytes()
	if max <= 0 {
		return
	}
	total, err := s.quota.TotalBytes(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "cache size accounting failed", "quota_accounting_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "cache may exceed its configured budget"))
		return
	}
	if total <= max {
		return
	}
	if err := s.quota.EvictOldest(ctx); err != nil {
		logging.WarnWithContext(s.logger, "cache eviction failed", "quota_eviction_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "cache may exceed its configured budget"))
	}
}

// Read decodes the record for key into thumbnails plus the source metadata
// stored at caching time. The metadata is returned as-is, never compared
// against the live source. Any structural violation deletes the record and
// reports ErrCorrupt, so the next access regenerates instead of failing
// forever.
func (s *Store) Read(ctx context.Context, key fingerprint.Key) ([]Thumbnail, SourceMeta, error) {
	file, err := os.Open(s.Path(key))
	if err != nil {
		return nil, SourceMeta{}, fmt.Errorf("%w: %s: %w", ErrOpen, key, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, SourceMeta{}, fmt.Errorf("%w: stat %s: %w", ErrOpen, key, err)
	}
	size := info.Size()

	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBuf); err != nil {
		return nil, SourceMeta{}, s.corrupt(key, file, fmt.Errorf("header: %w", err))
	}
	meta, err := parseHeader(headerBuf)
	if err != nil {
		return nil, SourceMeta{}, s.corrupt(key, file, err)
	}

	thumbs := make([]Thumbnail, 0, 8)
	for offset := int64(headerSize); offset < size; {
		if err := ctx.Err(); err != nil {
			return nil, SourceMeta{}, err
		}
		thumb, consumed, err := readBlock(file, size-offset)
		if err != nil {
			return nil, SourceMeta{}, s.corrupt(key, file, err)
		}
		thumbs = append(thumbs, thumb)
		offset += consumed
	}

	return thumbs, meta, nil
}

// Meta reads only the record header for key, for callers that need the
// stored source attributes without decoding every block. Corruption
// semantics match Read: a short or foreign-version header deletes the
// record and reports ErrCorrupt.
func (s *Store) Meta(key fingerprint.Key) (SourceMeta, error) {
	file, err := os.Open(s.Path(key))
	if err != nil {
		return SourceMeta{}, fmt.Errorf("%w: %s: %w", ErrOpen, key, err)
	}
	defer file.Close()

	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBuf); err != nil {
		return SourceMeta{}, s.corrupt(key, file, fmt.Errorf("header: %w", err))
	}
	meta, err := parseHeader(headerBuf)
	if err != nil {
		return SourceMeta{}, s.corrupt(key, file, err)
	}
	return meta, nil
}

// corrupt deletes the offending record (best-effort) and wraps the cause
// in ErrCorrupt.
func (s *Store) corrupt(key fingerprint.Key, file *os.File, cause error) error {
	file.Close()
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(s.logger, "failed to delete corrupt record", "corrupt_cleanup_failed",
			logging.String(logging.FieldCacheKey, key.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the file manually"),
			logging.String(logging.FieldImpact, "reads for this key keep failing until the file is removed"))
	} else {
		s.logger.Warn("deleted corrupt record",
			logging.String(logging.FieldEventType, "corrupt_record_deleted"),
			logging.String(logging.FieldCacheKey, key.String()),
			logging.String(logging.FieldErrorHint, "the next access regenerates it"),
			logging.String(logging.FieldImpact, "one-time regeneration cost"))
	}
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, cause)
}

// Delete removes the record for key. A missing record is not an error.
func (s *Store) Delete(key fingerprint.Key) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("thumbcache: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every record in the cache directory, identified by filename.
// Temp files and foreign files are skipped.
func (s *Store) Keys() ([]fingerprint.Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("thumbcache: list cache directory: %w", err)
	}
	keys := make([]fingerprint.Key, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		key, err := fingerprint.ParseKey(entry.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// SweepTemp removes temp files older than maxAge left behind by crashed
// writers. Per-file removal failures are logged and skipped.
func (s *Store) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("thumbcache: list cache directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.Contains(entry.Name(), ".tmp-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "failed to sweep temp file", "temp_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "stale temp file occupies disk space"))
			continue
		}
		removed++
	}
	return removed, nil
}

// StatSource obtains the size and modification time Write stores in the
// record header.
func StatSource(path string) (SourceMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceMeta{}, fmt.Errorf("%w: %s: %w", ErrMetadata, path, err)
	}
	return SourceMeta{Size: info.Size(), ModTime: info.ModTime()}, nil
}
