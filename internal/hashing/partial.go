package hashing

import (
	"fmt"
	"io"
	"os"

	"dupelens/internal/identity"
)

// SpanBytes is the length of each partial-hash read (head, tail, and middle).
const SpanBytes = 1 << 20

// ComputePartial digests the first and last SpanBytes of the file, plus a
// middle span when the file is large enough that the three spans cannot
// overlap. Small files digest their full contents as both head and tail.
func ComputePartial(path string, size int64, algo Algorithm) (identity.PartialHash, error) {
	file, err := os.Open(path)
	if err != nil {
		return identity.PartialHash{}, fmt.Errorf("open for partial hash: %w", err)
	}
	defer file.Close()

	head, err := readSpan(file, 0, min64(SpanBytes, size))
	if err != nil {
		return identity.PartialHash{}, fmt.Errorf("read head span: %w", err)
	}

	tailOffset := max64(0, size-SpanBytes)
	tail, err := readSpan(file, tailOffset, size-tailOffset)
	if err != nil {
		return identity.PartialHash{}, fmt.Errorf("read tail span: %w", err)
	}

	partial := identity.PartialHash{
		Algorithm: algo.Name(),
		Head:      algo.Digest(head),
		Tail:      algo.Digest(tail),
		SpanBytes: SpanBytes,
	}

	if size > 3*SpanBytes {
		midOffset := (size - SpanBytes) / 2
		mid, err := readSpan(file, midOffset, SpanBytes)
		if err != nil {
			return identity.PartialHash{}, fmt.Errorf("read mid span: %w", err)
		}
		partial.Mid = algo.Digest(mid)
	}

	return partial, nil
}

func readSpan(file *os.File, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
