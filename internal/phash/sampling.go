package phash

import (
	"math"
	"strings"
)

// Mode selects the sampling density trade-off.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeThorough Mode = "thorough"
)

// ParseMode maps a config string to a Mode, defaulting to balanced.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "fast":
		return ModeFast
	case "thorough":
		return ModeThorough
	default:
		return ModeBalanced
	}
}

// Plan holds the sampling parameters for one video: how far apart frames are
// taken and the floor/ceiling on how many.
type Plan struct {
	IntervalSeconds float64
	MinFrames       int
	MaxFrames       int
}

// Duration bands: short clips sample densely, long media sparsely.
const (
	shortBandSeconds  = 5 * 60
	mediumBandSeconds = 60 * 60
)

// planTable is keyed by mode, then band (short, medium, long).
var planTable = map[Mode][3]Plan{
	ModeFast: {
		{IntervalSeconds: 10, MinFrames: 4, MaxFrames: 30},
		{IntervalSeconds: 30, MinFrames: 8, MaxFrames: 60},
		{IntervalSeconds: 60, MinFrames: 10, MaxFrames: 80},
	},
	ModeBalanced: {
		{IntervalSeconds: 5, MinFrames: 6, MaxFrames: 60},
		{IntervalSeconds: 15, MinFrames: 10, MaxFrames: 120},
		{IntervalSeconds: 30, MinFrames: 15, MaxFrames: 160},
	},
	ModeThorough: {
		{IntervalSeconds: 2, MinFrames: 10, MaxFrames: 150},
		{IntervalSeconds: 10, MinFrames: 15, MaxFrames: 240},
		{IntervalSeconds: 20, MinFrames: 20, MaxFrames: 320},
	},
}

// PlanFor returns the sampling plan for a duration and mode.
func PlanFor(durationSeconds float64, mode Mode) Plan {
	plans, ok := planTable[mode]
	if !ok {
		plans = planTable[ModeBalanced]
	}
	switch {
	case durationSeconds <= shortBandSeconds:
		return plans[0]
	case durationSeconds <= mediumBandSeconds:
		return plans[1]
	default:
		return plans[2]
	}
}

// FrameCount clamps duration/interval into the plan's bounds.
func (p Plan) FrameCount(durationSeconds float64) int {
	if durationSeconds <= 0 {
		return p.MinFrames
	}
	count := int(math.Round(durationSeconds / p.IntervalSeconds))
	if count < p.MinFrames {
		return p.MinFrames
	}
	if count > p.MaxFrames {
		return p.MaxFrames
	}
	return count
}

// Timestamps returns evenly spaced sample points across the duration,
// offset to window midpoints so neither the first nor last frame sits on a
// container boundary.
func Timestamps(durationSeconds float64, count int) []float64 {
	if count <= 0 || durationSeconds <= 0 {
		return nil
	}
	stamps := make([]float64, count)
	window := durationSeconds / float64(count)
	for i := range stamps {
		stamps[i] = window * (float64(i) + 0.5)
	}
	return stamps
}
