// Package hashing implements the content-hash cascade: size bucketing, then
// partial hashing over head/tail/middle spans, then a full cryptographic
// hash, so entire files are only read when every cheaper signal has already
// collided.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"
)

// Algorithm is the partial-hash digest strategy, chosen once at startup and
// injected rather than consulted through global state. Digests from
// different algorithms never compare equal because the name participates in
// the bucket key.
type Algorithm struct {
	name string
	sum  func([]byte) []byte
}

// Name identifies the algorithm in cache records and bucket keys.
func (a Algorithm) Name() string { return a.name }

// Digest returns the hex digest of data.
func (a Algorithm) Digest(data []byte) string {
	return hex.EncodeToString(a.sum(data))
}

// BLAKE3 is the preferred partial-hash algorithm.
func BLAKE3() Algorithm {
	return Algorithm{
		name: "blake3",
		sum: func(data []byte) []byte {
			sum := blake3.Sum256(data)
			return sum[:]
		},
	}
}

// BLAKE2b is the fallback partial-hash algorithm.
func BLAKE2b() Algorithm {
	return Algorithm{
		name: "blake2b",
		sum: func(data []byte) []byte {
			sum := blake2b.Sum256(data)
			return sum[:]
		},
	}
}

// DefaultAlgorithm returns the preferred algorithm.
func DefaultAlgorithm() Algorithm {
	return BLAKE3()
}

// FullHash streams the whole file through SHA-256. This is the only place
// the cascade reads entire file contents.
func FullHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for full hash: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("read for full hash: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
