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

// Paths contains directory and file location configuration.
type Paths struct {
	CacheFile   string `toml:"cache_file"`
	HistoryFile string `toml:"history_file"`
	LogDir      string `toml:"log_dir"`
}

// Scan contains tuning for the duplicate-detection cascade.
type Scan struct {
	// DurationTolerance is the metadata-grouping bucket width in seconds.
	DurationTolerance float64 `toml:"duration_tolerance"`
	// Quality selects the adaptive sampling mode: fast, balanced, or thorough.
	Quality string `toml:"quality"`
	// PhashThreshold is the maximum average per-frame Hamming distance for
	// same-length perceptual matches.
	PhashThreshold float64 `toml:"phash_threshold"`
	// SubsetThreshold is the looser per-frame distance bound for
	// sliding-window subset matches.
	SubsetThreshold float64 `toml:"subset_threshold"`
	// SubsetMinRatio rejects subset candidates shorter than this fraction of
	// the longer video.
	SubsetMinRatio  float64 `toml:"subset_min_ratio"`
	MatchResolution bool    `toml:"match_resolution"`
	MatchCodec      bool    `toml:"match_codec"`
	MatchContainer  bool    `toml:"match_container"`
	// KeepOrder lists winner-selection criteria in priority order. Valid
	// entries: duration, resolution, bitrate, mtime, size, depth.
	KeepOrder []string `toml:"keep_order"`
	// Workers bounds per-file concurrency inside a stage. Zero means one
	// worker per CPU.
	Workers int `toml:"workers"`
	// VideoExtensions lists the file extensions treated as video.
	VideoExtensions []string `toml:"video_extensions"`
}

// Tools contains external binary configuration.
type Tools struct {
	FFprobe               string `toml:"ffprobe"`
	FFmpeg                string `toml:"ffmpeg"`
	ProbeTimeoutSeconds   int    `toml:"probe_timeout"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout"`
	HardwareDecode        bool   `toml:"hardware_decode"`
	ThumbnailSize         int    `toml:"thumbnail_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dupelens.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Scan    Scan    `toml:"scan"`
	Tools   Tools   `toml:"tools"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dupelens/config.toml")
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file is not
// an error; defaults apply.
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
		if _, err := os.Stat(expanded); err != nil {
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
	projectPath, err := filepath.Abs("dupelens.toml")
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

func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheFile, err = expandPath(c.Paths.CacheFile); err != nil {
		return err
	}
	if c.Paths.HistoryFile, err = expandPath(c.Paths.HistoryFile); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Scan.Quality = strings.ToLower(strings.TrimSpace(c.Scan.Quality))
	for i, ext := range c.Scan.VideoExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scan.VideoExtensions[i] = ext
	}
	for i, criterion := range c.Scan.KeepOrder {
		c.Scan.KeepOrder[i] = strings.ToLower(strings.TrimSpace(criterion))
	}
	return nil
}

// EnsureDirectories creates the directories backing the configured paths.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.CacheFile),
		filepath.Dir(c.Paths.HistoryFile),
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IsVideoPath reports whether the path carries one of the configured video
// extensions.
func (c *Config) IsVideoPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range c.Scan.VideoExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
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
