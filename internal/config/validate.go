package config

import (
	"errors"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxMiB < 0 {
		return errors.New("cache.max_mib must be >= 0 (0 disables caching)")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if c.Thumbnails.Width <= 0 {
		return errors.New("thumbnails.width must be positive")
	}
	if c.Thumbnails.Width > 7680 {
		return errors.New("thumbnails.width must not exceed 7680")
	}
	if c.Thumbnails.Count <= 0 {
		return errors.New("thumbnails.count must be positive")
	}
	if c.Thumbnails.Count > 1000 {
		return errors.New("thumbnails.count must not exceed 1000")
	}
	if len(c.Thumbnails.PlayableExtensions) == 0 {
		return errors.New("thumbnails.playable_extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.Enabled && c.Remote.TimeoutSeconds <= 0 {
		return errors.New("remote.timeout_seconds must be positive when remote.enabled is true")
	}
	return nil
}
