package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"lightbox/internal/catalog"
	"lightbox/internal/config"
	"lightbox/internal/fingerprint"
	"lightbox/internal/logging"
	"lightbox/internal/producer"
	"lightbox/internal/thumbcache"
)

// Summary counts per-file outcomes of one generation pass. Files without a
// playable extension are invisible: they appear in no counter.
type Summary struct {
	Scanned   int `json:"scanned"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Option configures optional Generator collaborators.
type Option func(*Generator)

// WithCatalog records successful generations in the ledger database.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(g *Generator) {
		g.catalog = cat
	}
}

// WithLogger routes orchestration logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logging.NewComponentLogger(logger, "generation")
		}
	}
}

// WithForce regenerates records even when a valid one already exists.
func WithForce(force bool) Option {
	return func(g *Generator) {
		g.force = force
	}
}

// WithProgress streams per-frame progress updates to fn, tagged with the
// source path. fn is called from the producer's goroutine.
func WithProgress(fn func(path string, p producer.Progress)) Option {
	return func(g *Generator) {
		g.onProgress = fn
	}
}

// Generator drives the cache-or-generate decision for videos. Safe for
// concurrent use; simultaneous requests for the same cache key share one
// producer run.
type Generator struct {
	cfg        *config.Config
	store      *thumbcache.Store
	producer   producer.Producer
	catalog    *catalog.Catalog
	logger     *slog.Logger
	force      bool
	onProgress func(path string, p producer.Progress)

	flight singleflight.Group
}

// New builds a Generator over the store and producer.
func New(cfg *config.Config, store *thumbcache.Store, prod producer.Producer, opts ...Option) *Generator {
	g := &Generator{
		cfg:      cfg,
		store:    store,
		producer: prod,
		logger:   logging.NewComponentLogger(nil, "generation"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path generates thumbnails for a video file or, for a directory, every
// playable video beneath it depth-first. During a walk per-file failures
// are logged and counted without aborting the batch; a single-file call
// returns its failure directly.
func (g *Generator) Path(ctx context.Context, path string) (Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, fmt.Errorf("generation: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return g.walk(ctx, path)
	}
	return g.single(ctx, path)
}

func (g *Generator) single(ctx context.Context, path string) (Summary, error) {
	if !g.cfg.IsPlayable(path) {
		g.logger.Debug("not a playable extension, skipped",
			logging.String(logging.FieldSourceFile, path))
		return Summary{}, nil
	}
	sum := Summary{Scanned: 1}
	generated, err := g.processFile(ctx, path)
	if err != nil {
		sum.Failed = 1
		return sum, err
	}
	if generated {
		sum.Generated = 1
	} else {
		sum.Skipped = 1
	}
	return sum, nil
}

func (g *Generator) walk(ctx context.Context, root string) (Summary, error) {
	var sum Summary
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() || !g.cfg.IsPlayable(path) {
			return nil
		}
		sum.Scanned++
		generated, procErr := g.processFile(ctx, path)
		if procErr != nil {
			if errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded) {
				return procErr
			}
			sum.Failed++
			logging.WarnWithContext(g.logger, "thumbnail generation failed", "generation_failed",
				logging.String(logging.FieldSourceFile, path),
				logging.Error(procErr),
				logging.String(logging.FieldErrorHint, "check the file is a readable video"),
				logging.String(logging.FieldImpact, "no thumbnails cached for this video"))
			return nil
		}
		if generated {
			sum.Generated++
		} else {
			sum.Skipped++
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("generation: walk %s: %w", root, err)
	}
	return sum, nil
}

// processFile reports whether a record was produced, as opposed to an
// existing one being kept.
func (g *Generator) processFile(ctx context.Context, path string) (bool, error) {
	key, err := fingerprint.FromFile(path)
	if err != nil {
		return false, err
	}
	if !g.force && g.fresh(key, path) {
		g.logger.Debug("record already cached",
			logging.String(logging.FieldCacheKey, key.String()),
			logging.String(logging.FieldSourceFile, path))
		return false, nil
	}

	_, err, shared := g.flight.Do(key.String(), func() (any, error) {
		return nil, g.produce(ctx, key, path)
	})
	if err != nil {
		return false, err
	}
	if shared {
		g.logger.Debug("duplicate generation coalesced",
			logging.String(logging.FieldCacheKey, key.String()))
	}
	return true, nil
}

// fresh reports whether a usable record already exists for key. When the
// staleness check is enabled, a record whose stored source size or mod
// time no longer matches the live file is reported stale so the caller
// regenerates it; the atomic write replaces the old record.
func (g *Generator) fresh(key fingerprint.Key, path string) bool {
	if !g.store.Valid(key) {
		return false
	}
	if !g.cfg.Cache.VerifySource {
		return true
	}
	stored, err := g.store.Meta(key)
	if err != nil {
		// Corrupt headers are already deleted by the store.
		return false
	}
	live, err := thumbcache.StatSource(path)
	if err != nil {
		return false
	}
	if stored.Size == live.Size && stored.ModTime.Unix() == live.ModTime.Unix() {
		return true
	}
	g.logger.Info("record stale, regenerating",
		logging.String(logging.FieldCacheKey, key.String()),
		logging.String(logging.FieldSourceFile, path),
		logging.Int64("stored_size", stored.Size),
		logging.Int64("live_size", live.Size))
	return false
}

func (g *Generator) produce(ctx context.Context, key fingerprint.Key, path string) error {
	req := producer.Request{
		Path:  path,
		Width: g.cfg.Thumbnails.Width,
		Count: g.cfg.Thumbnails.Count,
	}
	if g.onProgress != nil {
		req.OnProgress = func(p producer.Progress) { g.onProgress(path, p) }
	}

	var completion producer.Completion
	select {
	case completion = <-g.producer.Generate(ctx, req):
	case <-ctx.Done():
		return ctx.Err()
	}
	if completion.Err != nil {
		return completion.Err
	}

	meta, err := thumbcache.StatSource(path)
	if err != nil {
		return err
	}
	if err := g.store.Write(ctx, key, completion.Thumbnails, meta); err != nil {
		return err
	}

	g.logger.Info("thumbnails generated",
		logging.String(logging.FieldCacheKey, key.String()),
		logging.String(logging.FieldSourceFile, path),
		logging.Int("thumbnails", len(completion.Thumbnails)))
	g.recordEntry(ctx, key, path, meta, len(completion.Thumbnails))
	return nil
}

// recordEntry upserts the catalog row for a written record. Best-effort:
// the catalog is advisory, so failures are logged and swallowed. Nothing
// is recorded when no record file exists, which covers disabled caching.
func (g *Generator) recordEntry(ctx context.Context, key fingerprint.Key, path string, meta thumbcache.SourceMeta, count int) {
	if g.catalog == nil {
		return
	}
	info, err := os.Stat(g.store.Path(key))
	if err != nil {
		return
	}
	entry := catalog.Entry{
		CacheKey:      key.String(),
		SourcePath:    path,
		SourceSize:    meta.Size,
		SourceModTime: meta.ModTime,
		ThumbCount:    count,
		RecordBytes:   info.Size(),
	}
	if err := g.catalog.Upsert(ctx, entry); err != nil {
		logging.WarnWithContext(g.logger, "catalog update failed", "catalog_update_failed",
			logging.String(logging.FieldCacheKey, key.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run cache prune to reconcile the catalog"),
			logging.String(logging.FieldImpact, "listing output may omit this video"))
	}
}
