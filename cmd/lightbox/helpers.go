package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lightbox/internal/catalog"
	"lightbox/internal/config"
	"lightbox/internal/fingerprint"
	"lightbox/internal/logging"
	"lightbox/internal/producer"
	"lightbox/internal/quota"
	"lightbox/internal/thumbcache"
)

// newProducer builds the frame extractor. Declared as a variable so CLI
// tests can substitute a producer that does not shell out.
var newProducer = func(cfg *config.Config, logger *slog.Logger) producer.Producer {
	return producer.NewFFmpeg(
		producer.WithFFmpegBinary(cfg.FFmpegBinary()),
		producer.WithFFprobeBinary(cfg.FFprobeBinary()),
		producer.WithLogger(logger),
	)
}

// newLogger builds the CLI logger. Output goes to stderr so stdout stays
// clean for tables and JSON; long-running commands also append to the log
// file under the configured log directory.
func newLogger(cfg *config.Config, toFile bool) (*slog.Logger, error) {
	paths := []string{"stderr"}
	if toFile {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, "lightbox.log"))
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// buildStore assembles the cache store with its quota manager.
func buildStore(cfg *config.Config, logger *slog.Logger) (*thumbcache.Store, *quota.Manager) {
	q := quota.NewManager(cfg.Paths.CacheDir, cfg.MaxCacheBytes(), logger)
	return thumbcache.New(cfg.Paths.CacheDir, q, logger), q
}

// openCatalog opens the advisory ledger. The catalog is optional: a
// failure is reported as a warning and callers proceed without it.
func openCatalog(cmd *cobra.Command, cfg *config.Config) *catalog.Catalog {
	cat, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: catalog unavailable: %v\n", err)
		return nil
	}
	return cat
}

// resolveKey interprets arg as a cache key when it parses as one, and as a
// video path to fingerprint otherwise.
func resolveKey(arg string) (fingerprint.Key, error) {
	trimmed := strings.TrimSpace(arg)
	if key, err := fingerprint.ParseKey(trimmed); err == nil {
		return key, nil
	}
	path, err := config.ExpandPath(trimmed)
	if err != nil {
		return "", err
	}
	return fingerprint.FromFile(path)
}

// statRecord returns the record file size for key.
func statRecord(store *thumbcache.Store, key fingerprint.Key) (int64, error) {
	info, err := os.Stat(store.Path(key))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
