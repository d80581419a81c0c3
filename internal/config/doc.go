// Package config loads and validates the dupelens TOML configuration.
//
// Configuration sections by subsystem:
//   - Paths: cache, history, and log locations
//   - Scan: cascade and matcher tuning (tolerance, thresholds, keep order, workers)
//   - Tools: external ffprobe/ffmpeg binaries and timeouts
//   - Logging: log format and level
package config
