package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lightbox/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "lightbox", "thumbs")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	wantCatalog := filepath.Join(tempHome, ".cache", "lightbox", "catalog.db")
	if cfg.Paths.CatalogPath != wantCatalog {
		t.Fatalf("unexpected catalog path: got %q want %q", cfg.Paths.CatalogPath, wantCatalog)
	}
	if cfg.Cache.MaxMiB != 512 {
		t.Fatalf("unexpected cache budget: %d", cfg.Cache.MaxMiB)
	}
	if cfg.Cache.VerifySource {
		t.Fatal("expected verify_source disabled by default")
	}
	if cfg.Thumbnails.Width != 320 {
		t.Fatalf("unexpected thumbnail width: %d", cfg.Thumbnails.Width)
	}
	if cfg.Thumbnails.Count != 10 {
		t.Fatalf("unexpected thumbnail count: %d", cfg.Thumbnails.Count)
	}
	if len(cfg.Thumbnails.PlayableExtensions) == 0 {
		t.Fatal("expected default playable extensions")
	}
	if cfg.Remote.Enabled {
		t.Fatal("expected remote fetch disabled by default")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "lightbox.toml")

	type payload struct {
		Paths struct {
			CacheDir string `toml:"cache_dir"`
		} `toml:"paths"`
		Cache struct {
			MaxMiB       int  `toml:"max_mib"`
			VerifySource bool `toml:"verify_source"`
		} `toml:"cache"`
		Thumbnails struct {
			Width int `toml:"width"`
			Count int `toml:"count"`
		} `toml:"thumbnails"`
	}
	custom := payload{}
	custom.Paths.CacheDir = filepath.Join(tempDir, "thumbs")
	custom.Cache.MaxMiB = 64
	custom.Cache.VerifySource = true
	custom.Thumbnails.Width = 480
	custom.Thumbnails.Count = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempDir, "thumbs") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Cache.MaxMiB != 64 {
		t.Fatalf("expected cache budget 64, got %d", cfg.Cache.MaxMiB)
	}
	if !cfg.Cache.VerifySource {
		t.Fatal("expected verify_source enabled")
	}
	if cfg.Thumbnails.Width != 480 {
		t.Fatalf("expected width 480, got %d", cfg.Thumbnails.Width)
	}
	if cfg.Thumbnails.Count != 4 {
		t.Fatalf("expected count 4, got %d", cfg.Thumbnails.Count)
	}
	if got := cfg.MaxCacheBytes(); got != 64*1024*1024 {
		t.Fatalf("unexpected MaxCacheBytes: %d", got)
	}
}

func TestNormalizePlayableExtensions(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "lightbox.toml")
	content := `
[thumbnails]
playable_extensions = [".MP4", "mkv", "  ", "MKV", ".webm"]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{"mp4", "mkv", "webm"}
	got := cfg.Thumbnails.PlayableExtensions
	if len(got) != len(want) {
		t.Fatalf("unexpected extensions: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("extension %d = %q, want %q", i, got[i], want[i])
		}
	}

	if !cfg.IsPlayable("/videos/clip.MP4") {
		t.Fatal("expected .MP4 to be playable")
	}
	if cfg.IsPlayable("/videos/notes.txt") {
		t.Fatal("expected .txt to be unplayable")
	}
	if cfg.IsPlayable("/videos/noext") {
		t.Fatal("expected extension-less path to be unplayable")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "negative cache budget",
			content: "[cache]\nmax_mib = -1\n",
			wantErr: "cache.max_mib",
		},
		{
			name:    "oversized width",
			content: "[thumbnails]\nwidth = 9000\n",
			wantErr: "thumbnails.width",
		},
		{
			name:    "oversized count",
			content: "[thumbnails]\ncount = 5000\n",
			wantErr: "thumbnails.count",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "lightbox.toml")
			if err := os.WriteFile(configPath, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(configPath)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestZeroBudgetDisablesCaching(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "lightbox.toml")
	if err := os.WriteFile(configPath, []byte("[cache]\nmax_mib = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MaxCacheBytes() != 0 {
		t.Fatalf("expected zero byte budget, got %d", cfg.MaxCacheBytes())
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	samplePath := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(samplePath); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(samplePath)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Thumbnails.Width != config.Default().Thumbnails.Width {
		t.Fatalf("sample width %d deviates from default", cfg.Thumbnails.Width)
	}
}
