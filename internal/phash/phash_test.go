package phash

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"dupelens/internal/dupegroup"
	"dupelens/internal/fpcache"
	"dupelens/internal/identity"
)

func TestFrameCountStaysWithinBounds(t *testing.T) {
	durations := []float64{0.5, 10, 299, 300, 301, 1800, 3600, 3601, 7200, 100000}
	for _, mode := range []Mode{ModeFast, ModeBalanced, ModeThorough} {
		for _, duration := range durations {
			plan := PlanFor(duration, mode)
			count := plan.FrameCount(duration)
			if count < plan.MinFrames || count > plan.MaxFrames {
				t.Fatalf("mode=%s duration=%v count=%d outside [%d,%d]",
					mode, duration, count, plan.MinFrames, plan.MaxFrames)
			}
		}
	}
}

func TestLongMediaSamplesSparserThanShort(t *testing.T) {
	short := PlanFor(120, ModeBalanced)
	long := PlanFor(3*3600, ModeBalanced)
	if long.IntervalSeconds <= short.IntervalSeconds {
		t.Fatalf("long interval %v should exceed short interval %v",
			long.IntervalSeconds, short.IntervalSeconds)
	}
}

func TestTimestampsStayInsideDuration(t *testing.T) {
	stamps := Timestamps(90, 9)
	if len(stamps) != 9 {
		t.Fatalf("len = %d", len(stamps))
	}
	prev := 0.0
	for _, stamp := range stamps {
		if stamp <= prev || stamp >= 90 {
			t.Fatalf("timestamp %v out of order or out of range", stamp)
		}
		prev = stamp
	}
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance(0, 0); d != 0 {
		t.Fatalf("identical hashes: %d", d)
	}
	if d := HammingDistance(0, ^uint64(0)); d != 64 {
		t.Fatalf("inverted hashes: %d", d)
	}
	if d := HammingDistance(0b1010, 0b0110); d != 2 {
		t.Fatalf("two flipped bits: %d", d)
	}
}

func TestPrefixDistanceNeedsOverlap(t *testing.T) {
	if _, ok := PrefixDistance(identity.Signature{1}, identity.Signature{1, 2, 3}); ok {
		t.Fatal("single-frame overlap must not compare")
	}
	distance, ok := PrefixDistance(identity.Signature{0, 0, 0}, identity.Signature{1, 1, 1})
	if !ok || distance != 1 {
		t.Fatalf("distance = %v ok = %v", distance, ok)
	}
}

func TestBestAlignmentFindsEmbeddedClip(t *testing.T) {
	long := identity.Signature{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	short := append(identity.Signature{}, long[3:6]...)

	alignment, ok := BestAlignment(short, long, 2)
	if !ok {
		t.Fatal("exact sub-signature must align")
	}
	if alignment.Offset != 3 || alignment.AvgDistance != 0 || alignment.OverlapFrames != 3 {
		t.Fatalf("alignment = %+v", alignment)
	}
}

func TestBestAlignmentRespectsThreshold(t *testing.T) {
	long := identity.Signature{0, 0, 0, 0, 0}
	short := identity.Signature{^uint64(0), ^uint64(0)}
	if _, ok := BestAlignment(short, long, 10); ok {
		t.Fatal("distance 64 must exceed threshold 10")
	}
}

func fakeID(name string) identity.FileIdentity {
	return identity.FileIdentity{Path: "/library/" + name, Size: 1 << 20, ModTime: time.Unix(1700000000, 0)}
}

func TestSameLengthGroupsClusterNearSignatures(t *testing.T) {
	matcher := Matcher{PhashThreshold: 8, SubsetThreshold: 12, SubsetMinRatio: 0.05}
	base := identity.Signature{0xFF00FF00, 0x00FF00FF, 0xF0F0F0F0, 0x0F0F0F0F}
	near := append(identity.Signature{}, base...)
	near[0] ^= 0b111 // 3 bits over 4 frames, avg well under 8
	far := identity.Signature{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}

	groups := matcher.SameLengthGroups([]Entry{
		{ID: fakeID("a.mkv"), Sig: base},
		{ID: fakeID("b.mkv"), Sig: near},
		{ID: fakeID("c.mkv"), Sig: far},
	})
	if len(groups) != 1 {
		t.Fatalf("groups = %d", len(groups))
	}
	group := groups[0]
	if group.Method != dupegroup.MethodPhash || len(group.Members) != 2 {
		t.Fatalf("group = %+v", group)
	}
	if group.Evidence == nil || group.Evidence.Detector != "phash" {
		t.Fatalf("evidence = %+v", group.Evidence)
	}
	if group.Evidence.AvgDistance <= 0 || group.Evidence.AvgDistance > 8 {
		t.Fatalf("avg distance = %v", group.Evidence.AvgDistance)
	}
}

func TestSubsetGroupsDetectClipInsideFeature(t *testing.T) {
	// A 30s clip cut from the head of a 300s feature: the clip's signature
	// is a prefix of the feature's.
	feature := make(identity.Signature, 60)
	for i := range feature {
		feature[i] = uint64(i) * 0x9E3779B97F4A7C15
	}
	clip := append(identity.Signature{}, feature[:6]...)

	matcher := Matcher{PhashThreshold: 8, SubsetThreshold: 12, SubsetMinRatio: 0.05}
	groups := matcher.SubsetGroups([]Entry{
		{ID: fakeID("feature.mkv"), Sig: feature, Duration: 300},
		{ID: fakeID("clip.mkv"), Sig: clip, Duration: 30},
	})
	if len(groups) != 1 {
		t.Fatalf("groups = %d", len(groups))
	}
	group := groups[0]
	if group.Method != dupegroup.MethodSubset || len(group.Members) != 2 {
		t.Fatalf("group = %+v", group)
	}
	ev := group.Evidence
	if ev == nil || ev.Offset != 0 || ev.AvgDistance != 0 || ev.OverlapFrames != 6 || ev.LongFrames != 60 {
		t.Fatalf("evidence = %+v", ev)
	}
}

func TestSubsetGroupsRejectTinyFragments(t *testing.T) {
	feature := make(identity.Signature, 100)
	for i := range feature {
		feature[i] = uint64(i) << 3
	}
	fragment := append(identity.Signature{}, feature[:2]...)

	matcher := Matcher{SubsetThreshold: 12, SubsetMinRatio: 0.05}
	if groups := matcher.SubsetGroups([]Entry{
		{ID: fakeID("feature.mkv"), Sig: feature, Duration: 500},
		{ID: fakeID("fragment.mkv"), Sig: fragment, Duration: 10},
	}); len(groups) != 0 {
		t.Fatalf("10s of 500s is below the ratio floor, got %d groups", len(groups))
	}
}

func TestSubsetGroupsGateOnDurationNotFrameCount(t *testing.T) {
	// A 30s clip of a 2h movie sampled in fast mode: 4 frames against 80.
	// The frame-count ratio lands exactly on the floor, but the duration
	// ratio is 0.004 and the pair must be rejected.
	movie := make(identity.Signature, 80)
	for i := range movie {
		movie[i] = uint64(i) * 0x9E3779B97F4A7C15
	}
	clip := append(identity.Signature{}, movie[:4]...)

	matcher := Matcher{SubsetThreshold: 12, SubsetMinRatio: 0.05}
	if groups := matcher.SubsetGroups([]Entry{
		{ID: fakeID("movie.mkv"), Sig: movie, Duration: 7200},
		{ID: fakeID("clip.mkv"), Sig: clip, Duration: 30},
	}); len(groups) != 0 {
		t.Fatalf("duration ratio 0.004 must be rejected, got %d groups", len(groups))
	}
}

func TestSubsetGroupsSkipCrossBandInversion(t *testing.T) {
	// Adjacent sampling bands: the 299s file samples 60 frames, the 301s
	// file only 20. The shorter duration carries the longer signature, so
	// no alignment exists and the pair is skipped.
	dense := make(identity.Signature, 60)
	sparse := make(identity.Signature, 20)
	for i := range dense {
		dense[i] = uint64(i) << 4
	}
	copy(sparse, dense[:20])

	matcher := Matcher{SubsetThreshold: 12, SubsetMinRatio: 0.05}
	if groups := matcher.SubsetGroups([]Entry{
		{ID: fakeID("dense.mkv"), Sig: dense, Duration: 299},
		{ID: fakeID("sparse.mkv"), Sig: sparse, Duration: 301},
	}); len(groups) != 0 {
		t.Fatalf("inverted frame counts cannot align, got %d groups", len(groups))
	}
}

// stubExtractor serves pre-baked frames and counts invocations.
type stubExtractor struct {
	calls  int
	frames func(count int) []image.Image
}

func (s *stubExtractor) Extract(_ context.Context, _ string, timestamps []float64) ([]image.Image, error) {
	s.calls++
	return s.frames(len(timestamps)), nil
}

func gradientFrame(seed int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Pix[y*img.Stride+x] = uint8((x*seed + y) % 256)
		}
	}
	return img
}

func openTestCache(t *testing.T) *fpcache.Cache {
	t.Helper()
	cache, err := fpcache.Open(filepath.Join(t.TempDir(), "fp.jsonl"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	cache.Load()
	return cache
}

func TestBuilderCachesSignatures(t *testing.T) {
	stub := &stubExtractor{frames: func(count int) []image.Image {
		frames := make([]image.Image, count)
		for i := range frames {
			frames[i] = gradientFrame(i + 2)
		}
		return frames
	}}
	builder := NewBuilder(stub, openTestCache(t), ModeFast, nil)
	id := fakeID("movie.mkv")

	first, ok := builder.Signature(context.Background(), id, 60)
	if !ok || len(first) == 0 {
		t.Fatalf("signature unavailable: ok=%v len=%d", ok, len(first))
	}
	second, ok := builder.Signature(context.Background(), id, 60)
	if !ok {
		t.Fatal("cached signature must be available")
	}
	if stub.calls != 1 {
		t.Fatalf("extractor calls = %d, want 1", stub.calls)
	}
	if len(first) != len(second) {
		t.Fatalf("cached signature length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached signature differs at frame %d", i)
		}
	}
}

func TestBuilderRecordsUnavailability(t *testing.T) {
	stub := &stubExtractor{frames: func(count int) []image.Image {
		// All frames missing: below the half-frames floor.
		return make([]image.Image, count)
	}}
	builder := NewBuilder(stub, openTestCache(t), ModeFast, nil)
	id := fakeID("broken.mkv")

	if _, ok := builder.Signature(context.Background(), id, 60); ok {
		t.Fatal("empty extraction must be unavailable")
	}
	if _, ok := builder.Signature(context.Background(), id, 60); ok {
		t.Fatal("unavailability must persist")
	}
	if stub.calls != 1 {
		t.Fatalf("extractor calls = %d, want 1 (unavailability cached)", stub.calls)
	}
}

func TestBuilderIdenticalInputsMatch(t *testing.T) {
	stub := &stubExtractor{frames: func(count int) []image.Image {
		frames := make([]image.Image, count)
		for i := range frames {
			frames[i] = gradientFrame(i + 2)
		}
		return frames
	}}
	builder := NewBuilder(stub, openTestCache(t), ModeBalanced, nil)

	a, okA := builder.Signature(context.Background(), fakeID("a.mkv"), 120)
	b, okB := builder.Signature(context.Background(), fakeID("b.mkv"), 120)
	if !okA || !okB {
		t.Fatal("signatures unavailable")
	}
	distance, ok := PrefixDistance(a, b)
	if !ok || distance != 0 {
		t.Fatalf("identical frame streams must hash identically: distance=%v ok=%v", distance, ok)
	}
}
