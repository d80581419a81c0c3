package scoring

import (
	"strings"
	"testing"

	"dupelens/internal/identity"
)

func metaInput(duration float64, width, height int, size, bitrate int64) MetaInput {
	return MetaInput{
		SizeBytes: size,
		Meta: identity.VideoMeta{
			DurationSeconds: duration,
			Width:           width,
			Height:          height,
			BitRate:         bitrate,
			VideoCodec:      "h264",
			Container:       "matroska",
		},
		HasMeta: true,
	}
}

func TestMetadataScoreIdenticalPairScoresHigh(t *testing.T) {
	a := metaInput(3600, 1920, 1080, 4<<30, 5_000_000)
	card := MetadataScore(a, a, MetadataOptions{DurationTolerance: 2.0})
	if card.Score < 0.95 {
		t.Fatalf("identical pair score = %v, want near 1", card.Score)
	}
}

func TestMetadataScoreDurationDrift(t *testing.T) {
	a := metaInput(3600, 1920, 1080, 4<<30, 5_000_000)
	b := metaInput(3601, 1920, 1080, 4<<30, 5_000_000)
	c := metaInput(3900, 1920, 1080, 4<<30, 5_000_000)

	near := MetadataScore(a, b, MetadataOptions{DurationTolerance: 2.0})
	far := MetadataScore(a, c, MetadataOptions{DurationTolerance: 2.0})
	if near.Score <= far.Score {
		t.Fatalf("closer durations must score higher: near=%v far=%v", near.Score, far.Score)
	}
}

func TestMetadataScoreMissingMetaIsNeutralNotZero(t *testing.T) {
	a := MetaInput{SizeBytes: 1000}
	b := MetaInput{SizeBytes: 1000}
	card := MetadataScore(a, b, MetadataOptions{DurationTolerance: 2.0})
	if card.Score <= 0.3 || card.Score >= 0.9 {
		t.Fatalf("missing metadata should land mid-range, got %v", card.Score)
	}
	if card.Positive["duration"] != 0.5 {
		t.Fatalf("missing duration should contribute the neutral value, got %v", card.Positive["duration"])
	}
}

func TestMetadataScoreCodecGating(t *testing.T) {
	a := metaInput(3600, 1920, 1080, 1000, 0)
	b := metaInput(3600, 1920, 1080, 1000, 0)
	b.Meta.VideoCodec = "hevc"

	ungated := MetadataScore(a, b, MetadataOptions{DurationTolerance: 2.0})
	if _, ok := ungated.Penalties["codec_mismatch"]; ok {
		t.Fatal("codec penalty must only apply when requested")
	}

	gated := MetadataScore(a, b, MetadataOptions{DurationTolerance: 2.0, PreferSameCodec: true})
	if _, ok := gated.Penalties["codec_mismatch"]; !ok {
		t.Fatal("expected codec mismatch penalty when requested")
	}
	if gated.Score >= ungated.Score {
		t.Fatalf("mismatch penalty should lower the score: %v vs %v", gated.Score, ungated.Score)
	}
}

func TestSubsetScorePerfectAlignment(t *testing.T) {
	card := SubsetScore(SubsetInput{
		AvgDistance:   0,
		DurationRatio: 0.1,
		OverlapFrames: 30,
		LongFrames:    300,
		Detector:      "phash",
	})
	if card.Score <= 0.4 {
		t.Fatalf("near-zero distance should score well, got %v (%s)", card.Score, card.Rationale)
	}
	if card.Positive["detector_phash"] != 0.10 {
		t.Fatalf("expected phash detector bonus, got %+v", card.Positive)
	}
}

func TestSubsetScoreHighDistancePenalty(t *testing.T) {
	weak := SubsetScore(SubsetInput{AvgDistance: 56, DurationRatio: 0.5, OverlapFrames: 10, LongFrames: 20})
	if _, ok := weak.Penalties["alignment_weak"]; !ok {
		t.Fatal("expected penalty above 80% of max distance")
	}
	strong := SubsetScore(SubsetInput{AvgDistance: 2, DurationRatio: 0.5, OverlapFrames: 10, LongFrames: 20})
	if strong.Score <= weak.Score {
		t.Fatalf("low distance must outscore high distance: %v vs %v", strong.Score, weak.Score)
	}
}

func TestSubsetScoreMissingDurationIsNeutral(t *testing.T) {
	card := SubsetScore(SubsetInput{AvgDistance: 3, OverlapFrames: 10, LongFrames: 100})
	if card.Positive["duration_ratio"] != 0.5 {
		t.Fatalf("missing ratio should be neutral: %+v", card.Positive)
	}
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	card := SubsetScore(SubsetInput{AvgDistance: 64, DurationRatio: 0.01, OverlapFrames: 1, LongFrames: 1000})
	if card.Score < 0 || card.Score > 1 {
		t.Fatalf("score out of range: %v", card.Score)
	}
}

func TestRationaleListsSortedLabelsThenPenalties(t *testing.T) {
	a := metaInput(3600, 1920, 1080, 1000, 0)
	b := metaInput(3600, 1280, 720, 900, 0)
	b.Meta.VideoCodec = "hevc"
	card := MetadataScore(a, b, MetadataOptions{DurationTolerance: 2.0, PreferSameCodec: true})

	if !strings.Contains(card.Rationale, "duration:") {
		t.Fatalf("rationale missing positives: %q", card.Rationale)
	}
	if !strings.Contains(card.Rationale, "-codec_mismatch:") {
		t.Fatalf("rationale missing penalties: %q", card.Rationale)
	}
	if strings.Index(card.Rationale, "bitrate:") > strings.Index(card.Rationale, "duration:") {
		t.Fatalf("positives not sorted: %q", card.Rationale)
	}
}
