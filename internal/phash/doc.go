// Package phash builds perceptual signatures for videos and matches them.
//
// A signature is an ordered sequence of 64-bit DCT perceptual hashes, one per
// sampled frame. Sampling density adapts to duration and a quality mode, with
// hard bounds so very long media cannot explode the frame count and very
// short clips still yield enough frames to align. Matching runs in two
// passes: same-length grouping over the overlapping prefix, and a
// sliding-window alignment scan that detects trimmed or partially
// overlapping copies.
package phash
