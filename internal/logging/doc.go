// Package logging constructs the slog loggers used throughout dupelens.
//
// Two output formats are supported: a compact single-line console format for
// interactive runs and JSON for machine consumption. Standardized field keys
// (component, stage, path, run_id, group_id) keep stage logs greppable across
// the pipeline.
package logging
