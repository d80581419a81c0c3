package deps

import (
	"os"
	"path/filepath"
	"testing"

	"dupelens/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Unset", Command: "  "}})
	if len(results) != 1 || results[0].Available {
		t.Fatalf("blank command must be unavailable: %#v", results)
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("detail = %q", results[0].Detail)
	}
}

func TestMediaRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFprobe = "/opt/media/ffprobe"
	cfg.Tools.FFmpeg = "/opt/media/ffmpeg"

	reqs := MediaRequirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("requirements = %d", len(reqs))
	}
	if reqs[0].Command != "/opt/media/ffprobe" || reqs[1].Command != "/opt/media/ffmpeg" {
		t.Fatalf("commands = %q, %q", reqs[0].Command, reqs[1].Command)
	}
	for _, req := range reqs {
		if !req.Optional {
			t.Fatalf("%s must be optional; scans degrade without it", req.Name)
		}
	}
}
