// Package preflight verifies that a scan can actually run before any work
// starts: directories exist and are writable, there is disk headroom for the
// caches, and the external media tools resolve.
package preflight

import (
	"context"
	"path/filepath"

	"dupelens/internal/config"
	"dupelens/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minCacheHeadroomBytes is the free-space floor for the cache volume. The
// fingerprint log and history database together stay far below this; running
// a scan on a nearly full disk is the real failure being caught.
const minCacheHeadroomBytes = 256 << 20

// RunAll executes all preflight checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	cacheDir := filepath.Dir(cfg.Paths.CacheFile)
	results = append(results, CheckDirectoryAccess("Cache directory", cacheDir))
	results = append(results, CheckDirectoryAccess("History directory", filepath.Dir(cfg.Paths.HistoryFile)))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckDiskHeadroom("Cache volume", cacheDir, minCacheHeadroomBytes))

	for _, status := range deps.CheckBinaries(deps.MediaRequirements(cfg)) {
		results = append(results, binaryResult(status))
	}
	return results
}

// binaryResult maps a dependency status to a check result. Optional binaries
// pass when missing; the scan degrades instead of failing.
func binaryResult(status deps.Status) Result {
	result := Result{Name: status.Name}
	switch {
	case status.Available:
		result.Passed = true
		result.Detail = status.Command
	case status.Optional:
		result.Passed = true
		result.Detail = status.Detail + " (metadata and perceptual stages disabled)"
	default:
		result.Detail = status.Detail
	}
	return result
}
