package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale catalogs are rebuilt by deleting the database file.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("catalog: schema version mismatch")

// Entry describes one cached thumbnail set.
type Entry struct {
	CacheKey      string
	SourcePath    string
	SourceSize    int64
	SourceModTime time.Time
	ThumbCount    int
	RecordBytes   int64
	GeneratedAt   time.Time
	UpdatedAt     time.Time
}

// Catalog provides access to the ledger database.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database at path.
func Open(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: ensure directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalog: apply pragma %q: %w", pragma, execErr)
		}
	}

	cat := &Catalog{db: db, path: path}
	if err := cat.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cat, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file location.
func (c *Catalog) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

func (c *Catalog) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("catalog: check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	err = c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("catalog: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Catalog) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("catalog: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("catalog: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the entry for its cache key. GeneratedAt is
// preserved across updates of an existing row; UpdatedAt always advances.
func (c *Catalog) Upsert(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.CacheKey) == "" {
		return errors.New("catalog: cache key required")
	}
	if strings.TrimSpace(entry.SourcePath) == "" {
		return errors.New("catalog: source path required")
	}

	now := time.Now().UTC()
	generatedAt := entry.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = now
	}

	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO thumbnail_sets (
            cache_key, source_path, source_size, source_mod_time,
            thumb_count, record_bytes, generated_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(cache_key) DO UPDATE SET
            source_path = excluded.source_path,
            source_size = excluded.source_size,
            source_mod_time = excluded.source_mod_time,
            thumb_count = excluded.thumb_count,
            record_bytes = excluded.record_bytes,
            updated_at = excluded.updated_at`,
		entry.CacheKey,
		entry.SourcePath,
		entry.SourceSize,
		entry.SourceModTime.UTC().Format(time.RFC3339Nano),
		entry.ThumbCount,
		entry.RecordBytes,
		generatedAt.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("catalog: upsert entry: %w", err)
	}
	return nil
}

// GetByKey fetches the entry for a cache key, or nil when absent.
func (c *Catalog) GetByKey(ctx context.Context, cacheKey string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM thumbnail_sets WHERE cache_key = ?`, cacheKey)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get entry: %w", err)
	}
	return entry, nil
}

// FindBySource returns the most recently updated entry for a source path,
// or nil when the path was never cataloged.
func (c *Catalog) FindBySource(ctx context.Context, sourcePath string) (*Entry, error) {
	row := c.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM thumbnail_sets WHERE source_path = ? ORDER BY updated_at DESC LIMIT 1`,
		sourcePath,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find by source: %w", err)
	}
	return entry, nil
}

// List returns all entries ordered by source path.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM thumbnail_sets ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for a cache key. Reports whether a row existed.
func (c *Catalog) Remove(ctx context.Context, cacheKey string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM thumbnail_sets WHERE cache_key = ?`, cacheKey)
	if err != nil {
		return false, fmt.Errorf("catalog: remove entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("catalog: rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all entries.
func (c *Catalog) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM thumbnail_sets`)
	if err != nil {
		return 0, fmt.Errorf("catalog: clear: %w", err)
	}
	return res.RowsAffected()
}

// Reconcile drops every entry whose cache key is not in live, returning the
// number of rows removed. Callers pass the set of record files actually
// present so the ledger converges back to the directory's truth.
func (c *Catalog) Reconcile(ctx context.Context, live map[string]struct{}) (int64, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT cache_key FROM thumbnail_sets`)
	if err != nil {
		return 0, fmt.Errorf("catalog: list keys: %w", err)
	}
	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, fmt.Errorf("catalog: scan key: %w", err)
		}
		if _, ok := live[key]; !ok {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var removed int64
	for _, key := range stale {
		ok, err := c.Remove(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of cataloged entries.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM thumbnail_sets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return count, nil
}

const entryColumns = "cache_key, source_path, source_size, source_mod_time, thumb_count, record_bytes, generated_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry      Entry
		modTimeRaw string
		genRaw     string
		updatedRaw string
	)
	if err := scanner.Scan(
		&entry.CacheKey,
		&entry.SourcePath,
		&entry.SourceSize,
		&modTimeRaw,
		&entry.ThumbCount,
		&entry.RecordBytes,
		&genRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if parsed, err := parseTimeString(modTimeRaw); err == nil {
		entry.SourceModTime = parsed
	}
	if parsed, err := parseTimeString(genRaw); err == nil {
		entry.GeneratedAt = parsed
	}
	if parsed, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = parsed
	}
	return &entry, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
