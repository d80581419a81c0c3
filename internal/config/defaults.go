package config

const (
	defaultCacheFile             = "~/.cache/dupelens/fingerprints.jsonl"
	defaultHistoryFile           = "~/.cache/dupelens/history.db"
	defaultLogDir                = "~/.local/share/dupelens/logs"
	defaultDurationTolerance     = 2.0
	defaultQuality               = "balanced"
	defaultPhashThreshold        = 8.0
	defaultSubsetThreshold       = 12.0
	defaultSubsetMinRatio        = 0.05
	defaultProbeTimeoutSeconds   = 30
	defaultExtractTimeoutSeconds = 120
	defaultThumbnailSize         = 32
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

func defaultVideoExtensions() []string {
	return []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".webm", ".wmv", ".mpg", ".mpeg", ".ts", ".flv"}
}

func defaultKeepOrder() []string {
	return []string{"duration", "resolution", "bitrate", "mtime"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheFile:   defaultCacheFile,
			HistoryFile: defaultHistoryFile,
			LogDir:      defaultLogDir,
		},
		Scan: Scan{
			DurationTolerance: defaultDurationTolerance,
			Quality:           defaultQuality,
			PhashThreshold:    defaultPhashThreshold,
			SubsetThreshold:   defaultSubsetThreshold,
			SubsetMinRatio:    defaultSubsetMinRatio,
			KeepOrder:         defaultKeepOrder(),
			VideoExtensions:   defaultVideoExtensions(),
		},
		Tools: Tools{
			FFprobe:               "ffprobe",
			FFmpeg:                "ffmpeg",
			ProbeTimeoutSeconds:   defaultProbeTimeoutSeconds,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			ThumbnailSize:         defaultThumbnailSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
