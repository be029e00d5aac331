package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeThumbnails()
	c.normalizeRemote()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath()
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.Width <= 0 {
		c.Thumbnails.Width = defaultThumbnailWidth
	}
	if c.Thumbnails.Count <= 0 {
		c.Thumbnails.Count = defaultThumbnailCount
	}
	if len(c.Thumbnails.PlayableExtensions) == 0 {
		c.Thumbnails.PlayableExtensions = defaultPlayableExtensions()
		return
	}
	exts := make([]string, 0, len(c.Thumbnails.PlayableExtensions))
	seen := make(map[string]struct{}, len(c.Thumbnails.PlayableExtensions))
	for _, ext := range c.Thumbnails.PlayableExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		normalized = strings.TrimPrefix(normalized, ".")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultPlayableExtensions()
	}
	c.Thumbnails.PlayableExtensions = exts
}

func (c *Config) normalizeRemote() {
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeoutSeconds
	}
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultRemoteUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
