package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir    string `toml:"cache_dir"`
	CatalogPath string `toml:"catalog_path"`
	LogDir      string `toml:"log_dir"`
}

// Cache contains configuration for cache sizing and staleness checks.
type Cache struct {
	// MaxMiB bounds the cache directory size. Zero disables caching
	// entirely: writes become silent no-ops.
	MaxMiB int `toml:"max_mib"`
	// VerifySource re-checks stored source size and mtime against the
	// live file before trusting a cached record. Default: false.
	VerifySource bool `toml:"verify_source"`
}

// Thumbnails contains configuration for generated thumbnail sets.
type Thumbnails struct {
	Width              int      `toml:"width"`
	Count              int      `toml:"count"`
	PlayableExtensions []string `toml:"playable_extensions"`
}

// Remote contains configuration for fingerprinting sources over HTTP.
type Remote struct {
	Enabled        bool   `toml:"enabled"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lightbox.
//
// Configuration sections by subsystem:
//   - Paths: cache directory, catalog database, and log directory
//   - Cache: size budget and source verification
//   - Thumbnails: dimensions, count, and the playable-extension set
//   - Remote: HTTP range fetches for remote fingerprinting
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Cache      Cache      `toml:"cache"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Remote     Remote     `toml:"remote"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lightbox/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lightbox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories cache operations require.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.CatalogPath) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.CatalogPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxCacheBytes converts the configured MiB budget into bytes.
// Zero means caching is disabled.
func (c *Config) MaxCacheBytes() int64 {
	if c.Cache.MaxMiB <= 0 {
		return 0
	}
	return int64(c.Cache.MaxMiB) * 1024 * 1024
}

// IsPlayable reports whether the path carries one of the configured
// playable extensions.
func (c *Config) IsPlayable(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	for _, candidate := range c.Thumbnails.PlayableExtensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

// FFmpegBinary returns the ffmpeg executable name used for frame extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "lightbox", "thumbs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/lightbox/thumbs"
	}
	return filepath.Join(home, ".cache", "lightbox", "thumbs")
}

func defaultCatalogPath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "lightbox", "catalog.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/lightbox/catalog.db"
	}
	return filepath.Join(home, ".cache", "lightbox", "catalog.db")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
