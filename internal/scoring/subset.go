package scoring

// maxFrameDistance is the largest possible per-frame Hamming distance for a
// 64-bit perceptual hash.
const maxFrameDistance = 64.0

// Subset evidence weights: the alignment distance carries the pair, duration
// ratio and temporal coverage corroborate.
const (
	weightAlignment = 2.0
	weightRatio     = 1.0
	weightCoverage  = 1.0

	// highDistancePenalty applies when the alignment distance exceeds 80% of
	// the maximum plausible distance, which indicates a match barely under
	// the caller's threshold.
	highDistanceFraction = 0.8
	highDistancePenalty  = 0.20
)

// detectorBonuses reflect the differing reliability of the detector that
// produced a subset candidate. Perceptual alignment and audio fingerprints
// rarely false-positive; timeline heuristics often do.
var detectorBonuses = map[string]float64{
	"phash":    0.10,
	"scene":    0.08,
	"audio":    0.12,
	"timeline": 0.05,
}

// SubsetInput carries the raw alignment evidence for a subset/trim candidate.
type SubsetInput struct {
	// AvgDistance is the minimum average per-frame Hamming distance found
	// across all alignment offsets.
	AvgDistance float64
	// DurationRatio is short/long duration, or 0 when metadata is missing.
	DurationRatio float64
	// OverlapFrames is the aligned window length in frames.
	OverlapFrames int
	// LongFrames is the longer signature's frame count.
	LongFrames int
	// Detector names the detector that produced the candidate.
	Detector string
}

// SubsetScore scores a subset/trim candidate pair.
func SubsetScore(in SubsetInput) ScoreCard {
	bld := newBuilder()

	normalized := clamp01(in.AvgDistance / maxFrameDistance)
	bld.add("alignment", 1.0-normalized, weightAlignment)
	if in.AvgDistance > highDistanceFraction*maxFrameDistance {
		bld.penalize("alignment_weak", highDistancePenalty)
	}

	if in.DurationRatio > 0 {
		bld.add("duration_ratio", in.DurationRatio, weightRatio)
	} else {
		bld.addNeutral("duration_ratio", weightRatio)
	}

	if in.LongFrames > 0 && in.OverlapFrames > 0 {
		bld.add("coverage", float64(in.OverlapFrames)/float64(in.LongFrames), weightCoverage)
	} else {
		bld.addNeutral("coverage", weightCoverage)
	}

	if bonus, ok := detectorBonuses[in.Detector]; ok {
		bld.bonus("detector_"+in.Detector, bonus)
	}

	return bld.card()
}
