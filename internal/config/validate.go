package config

import (
	"errors"
	"fmt"
	"strings"
)

var validKeepCriteria = map[string]struct{}{
	"duration":   {},
	"resolution": {},
	"bitrate":    {},
	"mtime":      {},
	"size":       {},
	"depth":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheFile) == "" {
		return errors.New("paths.cache_file must be set")
	}
	if strings.TrimSpace(c.Paths.HistoryFile) == "" {
		return errors.New("paths.history_file must be set")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.DurationTolerance <= 0 {
		return errors.New("scan.duration_tolerance must be greater than zero")
	}
	switch c.Scan.Quality {
	case "fast", "balanced", "thorough":
	default:
		return fmt.Errorf("scan.quality must be fast, balanced, or thorough (got %q)", c.Scan.Quality)
	}
	if c.Scan.PhashThreshold <= 0 || c.Scan.PhashThreshold > 64 {
		return errors.New("scan.phash_threshold must be in (0, 64]")
	}
	if c.Scan.SubsetThreshold <= 0 || c.Scan.SubsetThreshold > 64 {
		return errors.New("scan.subset_threshold must be in (0, 64]")
	}
	if c.Scan.SubsetMinRatio < 0 || c.Scan.SubsetMinRatio > 1 {
		return errors.New("scan.subset_min_ratio must be between 0 and 1")
	}
	if c.Scan.Workers < 0 {
		return errors.New("scan.workers must not be negative")
	}
	if len(c.Scan.KeepOrder) == 0 {
		return errors.New("scan.keep_order must list at least one criterion")
	}
	for _, criterion := range c.Scan.KeepOrder {
		if _, ok := validKeepCriteria[criterion]; !ok {
			return fmt.Errorf("scan.keep_order: unknown criterion %q", criterion)
		}
	}
	if len(c.Scan.VideoExtensions) == 0 {
		return errors.New("scan.video_extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		return errors.New("tools.ffprobe must be set")
	}
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return errors.New("tools.ffmpeg must be set")
	}
	if c.Tools.ProbeTimeoutSeconds <= 0 {
		return errors.New("tools.probe_timeout must be greater than zero")
	}
	if c.Tools.ExtractTimeoutSeconds <= 0 {
		return errors.New("tools.extract_timeout must be greater than zero")
	}
	if c.Tools.ThumbnailSize < 8 || c.Tools.ThumbnailSize > 256 {
		return errors.New("tools.thumbnail_size must be between 8 and 256")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}
