package generation

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"lightbox/internal/logging"
)

// defaultSettle is how long a file must stay quiet before it is
// fingerprinted, so half-copied videos are not hashed mid-write.
const defaultSettle = 2 * time.Second

// Watcher generates thumbnails as videos appear or change under a root
// directory. New subdirectories are watched as they are created.
type Watcher struct {
	gen    *Generator
	settle time.Duration
	logger *slog.Logger
}

// NewWatcher builds a watcher driving gen. A settle of zero or less uses
// the default quiet window.
func NewWatcher(gen *Generator, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		gen:    gen,
		settle: settle,
		logger: logging.NewComponentLogger(logger, "watch"),
	}
}

// Run watches root until ctx is canceled. Playable files that were created
// or written are queued, and each queued file is generated after the whole
// queue has been quiet for the settle window.
func (w *Watcher) Run(ctx context.Context, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("generation: stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("generation: watch root %s is not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("generation: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]struct{})
	w.logger.Info("watching for videos", logging.String("root", root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event, pending, timer)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watch event stream error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the watch if events stop arriving"),
				logging.String(logging.FieldImpact, "some file changes may be missed"))
		case <-timer.C:
			w.flush(ctx, pending)
		}
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, pending map[string]struct{}, timer *time.Timer) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				logging.WarnWithContext(w.logger, "failed to watch new directory", "watch_error",
					logging.String("path", event.Name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
					logging.String(logging.FieldImpact, "videos under this directory are not picked up"))
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.gen.cfg.IsPlayable(event.Name) {
		return
	}
	pending[event.Name] = struct{}{}
	resetTimer(timer, w.settle)
}

// flush generates every settled path in order. Paths deleted while
// settling are dropped silently.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	clear(pending)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := w.gen.Path(ctx, path); err != nil {
			logging.WarnWithContext(w.logger, "thumbnail generation failed", "generation_failed",
				logging.String(logging.FieldSourceFile, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the file is a readable video"),
				logging.String(logging.FieldImpact, "no thumbnails cached for this video"))
		}
	}
}

// addTree registers root and every subdirectory with the watcher.
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("generation: watch %s: %w", path, err)
		}
		return nil
	})
}

// resetTimer restarts a possibly fired timer, draining a stale tick first.
func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
