// Package testsupport provides shared helpers for package tests: a config
// builder seeded with temp directories, stubbed external binaries, and
// deterministic fakes for the probe and frame-extraction interfaces.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dupelens/internal/config"
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
	cfgVal.Paths.CacheFile = filepath.Join(base, "cache", "fingerprints.jsonl")
	cfgVal.Paths.HistoryFile = filepath.Join(base, "cache", "history.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Scan.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithQuality sets the sampling quality mode on the test config.
func WithQuality(quality string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Quality = quality
	}
}

// WithKeepOrder overrides the winner-selection criteria list.
func WithKeepOrder(criteria ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.KeepOrder = criteria
	}
}

// WithStubbedBinaries writes stub executables for the provided names, points
// the tool config at them, and prepends their directory to PATH. If names is
// empty, ffprobe and ffmpeg are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffprobe", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffprobe":
				b.cfg.Tools.FFprobe = target
			case "ffmpeg":
				b.cfg.Tools.FFmpeg = target
			}
		}
		pathEnv := binDir
		if current := os.Getenv("PATH"); current != "" {
			pathEnv = binDir + string(os.PathListSeparator) + current
		}
		b.t.Setenv("PATH", pathEnv)
	}
}
