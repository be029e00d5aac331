package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lightbox/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "thumbs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Thumbnails.Width = 32
	cfgVal.Thumbnails.Count = 2
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxCacheMiB sets the cache budget. Zero disables caching.
func WithMaxCacheMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.MaxMiB = mib
	}
}

// WithVerifySource enables the staleness check against the live source.
func WithVerifySource(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.VerifySource = enabled
	}
}

// WithThumbnailParams sets the generated thumbnail width and count.
func WithThumbnailParams(width, count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thumbnails.Width = width
		b.cfg.Thumbnails.Count = count
	}
}

// WithPlayableExtensions replaces the playable-extension set.
func WithPlayableExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thumbnails.PlayableExtensions = exts
	}
}

// WithRemoteEnabled toggles HTTP range fetching.
func WithRemoteEnabled(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.Enabled = enabled
	}
}

// WriteConfig marshals cfg into a config.toml beside its directories and
// returns the file path, for tests that drive the CLI with --config.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
