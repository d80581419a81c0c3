package phash

import (
	"math"
	"math/bits"

	"dupelens/internal/identity"
)

// minOverlapFrames is the smallest comparison window that carries any
// signal. A single-frame match is noise.
const minOverlapFrames = 2

// HammingDistance counts differing bits between two 64-bit frame hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// PrefixDistance averages the per-frame Hamming distance over the shared
// prefix of two signatures. It reports false when the overlap is too short
// to compare.
func PrefixDistance(a, b identity.Signature) (float64, bool) {
	overlap := len(a)
	if len(b) < overlap {
		overlap = len(b)
	}
	if overlap < minOverlapFrames {
		return 0, false
	}
	total := 0
	for i := 0; i < overlap; i++ {
		total += HammingDistance(a[i], b[i])
	}
	return float64(total) / float64(overlap), true
}

// Alignment is the best placement of a short signature inside a long one.
type Alignment struct {
	Offset        int
	AvgDistance   float64
	OverlapFrames int
}

// BestAlignment slides the short signature across every offset of the long
// one and returns the placement with the lowest average distance, provided
// that distance stays at or under the threshold. The short signature must
// fit entirely inside the long one.
func BestAlignment(short, long identity.Signature, threshold float64) (Alignment, bool) {
	if len(short) < minOverlapFrames || len(short) > len(long) {
		return Alignment{}, false
	}
	best := Alignment{AvgDistance: math.MaxFloat64}
	for offset := 0; offset <= len(long)-len(short); offset++ {
		total := 0
		for i, frame := range short {
			total += HammingDistance(frame, long[offset+i])
		}
		avg := float64(total) / float64(len(short))
		if avg < best.AvgDistance {
			best = Alignment{Offset: offset, AvgDistance: avg, OverlapFrames: len(short)}
		}
	}
	if best.AvgDistance > threshold {
		return Alignment{}, false
	}
	return best, true
}
