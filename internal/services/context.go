package services

import "context"

type contextKey string

const (
	ctxKeyRunID contextKey = "run_id"
	ctxKeyStage contextKey = "stage"
	ctxKeyPath  contextKey = "path"
)

// WithRunID attaches the scan run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRunID, runID)
}

// RunIDFromContext extracts the scan run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKeyRunID).(string)
	return id, ok && id != ""
}

// WithStage attaches the active pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyStage, stage)
}

// StageFromContext extracts the pipeline stage name, if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	stage, ok := ctx.Value(ctxKeyStage).(string)
	return stage, ok && stage != ""
}

// WithPath attaches the file path being processed to the context.
func WithPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyPath, path)
}

// PathFromContext extracts the file path being processed, if present.
func PathFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	path, ok := ctx.Value(ctxKeyPath).(string)
	return path, ok && path != ""
}
