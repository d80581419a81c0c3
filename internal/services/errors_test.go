package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("exit status 1")
	err := Wrap(ErrProbe, "probe", "inspect", "ffprobe exited", inner)
	if !errors.Is(err, ErrProbe) {
		t.Fatalf("expected wrapped error to match ErrProbe: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error to preserve the cause: %v", err)
	}
	if !strings.Contains(err.Error(), "probe: inspect: ffprobe exited") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapWithoutMarkerDefaultsToExternalTool(t *testing.T) {
	err := Wrap(nil, "extract", "batch", "", nil)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected default marker: %v", err)
	}
}

func TestExcludesClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrProbe, "probe", "inspect", "", nil), true},
		{Wrap(ErrHash, "hash", "read", "", nil), true},
		{Wrap(ErrTimeout, "extract", "batch", "", nil), true},
		{Wrap(ErrValidation, "pipeline", "input", "", nil), false},
		{Wrap(ErrConfiguration, "config", "load", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Excludes(tc.err); got != tc.want {
			t.Fatalf("Excludes(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
