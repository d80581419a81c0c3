package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"dupelens/internal/services"
)

func TestConsoleHandlerFoldsComponentIntoPrefix(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	WithComponent(logger, "hash").Info("stage complete", slog.Int("files", 812))

	line := buf.String()
	if !strings.Contains(line, "INFO hash: stage complete") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "files=812") {
		t.Fatalf("missing attr in console line: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Warn("probe failed", slog.String("detail", "exit status 1"))

	if !strings.Contains(buf.String(), `detail="exit status 1"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	ctx := services.WithStage(context.Background(), "phash")
	ctx = services.WithPath(ctx, "/videos/a.mkv")
	WithContext(ctx, logger).Info("sampled")

	line := buf.String()
	if !strings.Contains(line, "stage=phash") || !strings.Contains(line, "path=/videos/a.mkv") {
		t.Fatalf("missing context fields: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Fatalf("parseLevel = %v, want info", got)
	}
	if got := parseLevel("DEBUG"); got != slog.LevelDebug {
		t.Fatalf("parseLevel = %v, want debug", got)
	}
}
