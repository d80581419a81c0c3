// Package services defines the shared error taxonomy and context carriers
// used across pipeline stages.
//
// Stage code wraps failures with one of the exported sentinel errors so the
// pipeline can classify a failure (probe, extraction, hash, cache write)
// without inspecting message text. No sentinel in this package is fatal to a
// run: every classified failure degrades to "signal unavailable" for the
// affected file.
package services
