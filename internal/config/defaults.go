package config

const (
	defaultLogDir               = "~/.local/share/lightbox/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultCacheMaxMiB          = 512
	defaultThumbnailWidth       = 320
	defaultThumbnailCount       = 10
	defaultRemoteTimeoutSeconds = 30
	defaultRemoteUserAgent      = "lightbox/dev"
)

func defaultPlayableExtensions() []string {
	return []string{
		"avi", "flv", "m4v", "mkv", "mov", "mp4",
		"mpeg", "mpg", "ts", "webm", "wmv",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:    defaultCacheDir(),
			CatalogPath: defaultCatalogPath(),
			LogDir:      defaultLogDir,
		},
		Cache: Cache{
			MaxMiB: defaultCacheMaxMiB,
		},
		Thumbnails: Thumbnails{
			Width:              defaultThumbnailWidth,
			Count:              defaultThumbnailCount,
			PlayableExtensions: defaultPlayableExtensions(),
		},
		Remote: Remote{
			TimeoutSeconds: defaultRemoteTimeoutSeconds,
			UserAgent:      defaultRemoteUserAgent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
