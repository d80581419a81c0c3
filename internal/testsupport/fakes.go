package testsupport

import (
	"context"
	"fmt"
	"image"

	"dupelens/internal/identity"
)

// FakeProber serves canned metadata keyed by path. Paths without an entry
// report no metadata, matching the degraded-probe contract.
type FakeProber struct {
	Meta map[string]identity.VideoMeta
}

func (f *FakeProber) Probe(_ context.Context, path string) (identity.VideoMeta, bool) {
	meta, ok := f.Meta[path]
	return meta, ok
}

// FakeSource describes what a path "contains" for the fake extractor: a
// content label and the absolute start offset of that content. Two paths with
// the same content render identical frames at the same absolute time, so
// trimmed copies align the way real footage would.
type FakeSource struct {
	Content string
	Start   float64
}

// FakeExtractor renders deterministic gradient frames from the content label
// and a coarse time bucket. Paths without an entry fail extraction.
type FakeExtractor struct {
	Sources map[string]FakeSource
	Calls   int
}

// frameBucketSeconds quantizes absolute time so nearby sample points in the
// same content render the same frame.
const frameBucketSeconds = 10

func (f *FakeExtractor) Extract(_ context.Context, path string, timestamps []float64) ([]image.Image, error) {
	f.Calls++
	source, ok := f.Sources[path]
	if !ok {
		return nil, fmt.Errorf("no fake source for %s", path)
	}
	frames := make([]image.Image, len(timestamps))
	for i, stamp := range timestamps {
		bucket := int((source.Start + stamp) / frameBucketSeconds)
		frames[i] = renderFrame(source.Content, bucket)
	}
	return frames, nil
}

func renderFrame(content string, bucket int) image.Image {
	seed := bucket*31 + 7
	for _, r := range content {
		seed = seed*131 + int(r)
	}
	if seed < 0 {
		seed = -seed
	}
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Pix[y*img.Stride+x] = uint8((x*(seed%97+2) + y*(seed%13+1)) % 256)
		}
	}
	return img
}
