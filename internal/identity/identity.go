// Package identity defines the file identity and per-file signal records
// shared across the pipeline.
//
// A FileIdentity (path, size, mtime) is the cache key: any size or mtime
// change makes a file a different identity, which implicitly invalidates every
// previously computed signal. Signals attach to a Record as explicitly
// optional fields so "not yet computed" stays distinct from "computed as
// empty".
package identity

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileIdentity uniquely identifies file content at a point in time.
type FileIdentity struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Key returns the stable cache key for this identity.
func (id FileIdentity) Key() string {
	return fmt.Sprintf("%s|%d|%d", id.Path, id.Size, id.ModTime.UnixNano())
}

// Depth returns the number of path separators, used as a keep criterion.
func (id FileIdentity) Depth() int {
	return strings.Count(filepath.Clean(id.Path), string(filepath.Separator))
}

// PartialHash is a cheap digest tuple over the head, tail, and optionally the
// middle of a file. Digests computed with different algorithms never compare
// equal.
type PartialHash struct {
	Algorithm string
	Head      string
	Tail      string
	// Mid is empty when the file was too small for a distinct middle span.
	Mid       string
	SpanBytes int64
}

// BucketKey returns the sub-bucketing key for the cascade: files collide only
// when algorithm, spans, and all digests agree.
func (p PartialHash) BucketKey() string {
	return strings.Join([]string{p.Algorithm, fmt.Sprintf("%d", p.SpanBytes), p.Head, p.Tail, p.Mid}, ":")
}

// VideoMeta carries the probed stream and container metadata consumed by the
// metadata and perceptual stages.
type VideoMeta struct {
	DurationSeconds float64
	Width           int
	Height          int
	Container       string
	VideoCodec      string
	AudioCodec      string
	BitRate         int64
	VideoBitRate    int64
}

// ResolutionArea returns width*height, or 0 when unknown.
func (m VideoMeta) ResolutionArea() int {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	return m.Width * m.Height
}

// Signature is an ordered perceptual-hash sequence, one 64-bit hash per
// sampled frame. Temporal order is significant for alignment.
type Signature []uint64

// Record aggregates every signal known for one file identity. Nil pointer
// fields mean "not yet computed".
type Record struct {
	Identity  FileIdentity
	fullHash  *string
	partial   *PartialHash
	video     *VideoMeta
	signature Signature
}

// NewRecord returns an empty record for the given identity.
func NewRecord(id FileIdentity) *Record {
	return &Record{Identity: id}
}

// FullHash returns the full-file digest and whether it has been computed.
func (r *Record) FullHash() (string, bool) {
	if r.fullHash == nil {
		return "", false
	}
	return *r.fullHash, true
}

// SetFullHash records the full-file digest.
func (r *Record) SetFullHash(digest string) {
	r.fullHash = &digest
}

// Partial returns the partial-hash tuple and whether it has been computed.
func (r *Record) Partial() (PartialHash, bool) {
	if r.partial == nil {
		return PartialHash{}, false
	}
	return *r.partial, true
}

// SetPartial records the partial-hash tuple.
func (r *Record) SetPartial(p PartialHash) {
	cp := p
	r.partial = &cp
}

// Video returns the probed metadata and whether a probe has succeeded.
func (r *Record) Video() (VideoMeta, bool) {
	if r.video == nil {
		return VideoMeta{}, false
	}
	return *r.video, true
}

// SetVideo records probed metadata.
func (r *Record) SetVideo(m VideoMeta) {
	cp := m
	r.video = &cp
}

// Signature returns the perceptual signature and whether one has been
// computed. An empty non-nil signature means hashing ran and produced nothing
// usable.
func (r *Record) Signature() (Signature, bool) {
	if r.signature == nil {
		return nil, false
	}
	return r.signature, true
}

// SetSignature records the perceptual signature.
func (r *Record) SetSignature(sig Signature) {
	if sig == nil {
		sig = Signature{}
	}
	r.signature = append(Signature{}, sig...)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := NewRecord(r.Identity)
	if r.fullHash != nil {
		clone.SetFullHash(*r.fullHash)
	}
	if r.partial != nil {
		clone.SetPartial(*r.partial)
	}
	if r.video != nil {
		clone.SetVideo(*r.video)
	}
	if r.signature != nil {
		clone.SetSignature(r.signature)
	}
	return clone
}
