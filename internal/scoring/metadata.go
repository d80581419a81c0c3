package scoring

import (
	"math"
	"strings"

	"dupelens/internal/identity"
)

// Evidence weights for metadata candidates. Duration agreement dominates,
// size and bitrate corroborate, resolution is the weakest signal because
// re-encodes legitimately change it.
const (
	weightDuration   = 2.5
	weightSize       = 2.0
	weightResolution = 1.0
	weightBitrate    = 1.2
	weightCodec      = 0.8
	weightContainer  = 0.5

	penaltyCodecMismatch     = 0.15
	penaltyContainerMismatch = 0.10
)

// MetaInput is one side of a metadata-candidate pair.
type MetaInput struct {
	SizeBytes int64
	Meta      identity.VideoMeta
	HasMeta   bool
}

// MetadataOptions gates the strict-match bonuses and penalties.
type MetadataOptions struct {
	DurationTolerance float64
	PreferSameCodec   bool
	// PreferSameContainer applies the container bonus/penalty.
	PreferSameContainer bool
}

// MetadataScore scores a candidate pair produced by the metadata grouper.
func MetadataScore(a, b MetaInput, opts MetadataOptions) ScoreCard {
	bld := newBuilder()

	if a.HasMeta && b.HasMeta && a.Meta.DurationSeconds > 0 && b.Meta.DurationSeconds > 0 {
		shorter := math.Min(a.Meta.DurationSeconds, b.Meta.DurationSeconds)
		baseline := math.Max(opts.DurationTolerance, math.Max(0.05*shorter, 1.0))
		delta := math.Abs(a.Meta.DurationSeconds - b.Meta.DurationSeconds)
		bld.add("duration", 1.0-math.Min(delta/baseline, 1.0), weightDuration)
	} else {
		bld.addNeutral("duration", weightDuration)
	}

	bld.add("size", similarityRatio(float64(a.SizeBytes), float64(b.SizeBytes)), weightSize)

	if a.HasMeta && b.HasMeta && a.Meta.ResolutionArea() > 0 && b.Meta.ResolutionArea() > 0 {
		bld.add("resolution", similarityRatio(float64(a.Meta.ResolutionArea()), float64(b.Meta.ResolutionArea())), weightResolution)
	} else {
		bld.addNeutral("resolution", weightResolution)
	}

	if opts.PreferSameCodec {
		scoreFieldMatch(bld, "codec", codecOf(a), codecOf(b), weightCodec, penaltyCodecMismatch)
	}
	if opts.PreferSameContainer {
		scoreFieldMatch(bld, "container", containerOf(a), containerOf(b), weightContainer, penaltyContainerMismatch)
	}

	if a.HasMeta && b.HasMeta && a.Meta.BitRate > 0 && b.Meta.BitRate > 0 {
		bld.add("bitrate", similarityRatio(float64(a.Meta.BitRate), float64(b.Meta.BitRate)), weightBitrate)
	} else {
		bld.addNeutral("bitrate", weightBitrate)
	}

	return bld.card()
}

// scoreFieldMatch adds a match bonus or mismatch penalty for an exact-match
// field. Unknown values on either side score neutral without a penalty.
func scoreFieldMatch(bld *builder, label, a, b string, weight, penalty float64) {
	if a == "" || b == "" {
		bld.addNeutral(label+"_match", weight)
		return
	}
	if strings.EqualFold(a, b) {
		bld.add(label+"_match", 1.0, weight)
		return
	}
	bld.add(label+"_match", 0.0, weight)
	bld.penalize(label+"_mismatch", penalty)
}

func codecOf(in MetaInput) string {
	if !in.HasMeta {
		return ""
	}
	return in.Meta.VideoCodec
}

func containerOf(in MetaInput) string {
	if !in.HasMeta {
		return ""
	}
	return in.Meta.Container
}
