package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, path, exists, err := Load(missing)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if path != missing {
		t.Fatalf("resolved path = %q, want %q", path, missing)
	}
	if cfg.Scan.Quality != "balanced" {
		t.Fatalf("expected default quality, got %q", cfg.Scan.Quality)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[scan]
quality = "Thorough"
video_extensions = ["MKV", ".mp4"]
keep_order = ["Duration", "size"]

[tools]
probe_timeout = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Scan.Quality != "thorough" {
		t.Fatalf("quality = %q", cfg.Scan.Quality)
	}
	if cfg.Scan.VideoExtensions[0] != ".mkv" {
		t.Fatalf("extensions not normalized: %v", cfg.Scan.VideoExtensions)
	}
	if cfg.Scan.KeepOrder[0] != "duration" {
		t.Fatalf("keep order not normalized: %v", cfg.Scan.KeepOrder)
	}
	if cfg.Tools.ProbeTimeoutSeconds != 10 {
		t.Fatalf("probe timeout = %d", cfg.Tools.ProbeTimeoutSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"quality", func(c *Config) { c.Scan.Quality = "ultra" }, "scan.quality"},
		{"tolerance", func(c *Config) { c.Scan.DurationTolerance = 0 }, "duration_tolerance"},
		{"threshold", func(c *Config) { c.Scan.PhashThreshold = 65 }, "phash_threshold"},
		{"ratio", func(c *Config) { c.Scan.SubsetMinRatio = 1.5 }, "subset_min_ratio"},
		{"keep", func(c *Config) { c.Scan.KeepOrder = []string{"charisma"} }, "keep_order"},
		{"thumb", func(c *Config) { c.Tools.ThumbnailSize = 4 }, "thumbnail_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestIsVideoPath(t *testing.T) {
	cfg := Default()
	if !cfg.IsVideoPath("/media/movie.MKV") {
		t.Fatal("expected .MKV to be recognized")
	}
	if cfg.IsVideoPath("/media/notes.txt") {
		t.Fatal("expected .txt to be rejected")
	}
}
