// Package dupegroup defines candidate and resolved duplicate groups and the
// winner-selection logic that turns stage output into keep/loser decisions.
package dupegroup

import (
	"github.com/google/uuid"

	"dupelens/internal/identity"
	"dupelens/internal/scoring"
)

// Method tags the stage that produced a candidate group.
type Method string

const (
	MethodSize     Method = "size"
	MethodHash     Method = "hash"
	MethodMetadata Method = "metadata"
	MethodPhash    Method = "phash"
	MethodSubset   Method = "subset"
)

// certainty ranks methods by signal strength: byte identity beats perceptual
// similarity beats metadata coincidence.
var certainty = map[Method]int{
	MethodHash:     5,
	MethodPhash:    4,
	MethodSubset:   3,
	MethodMetadata: 2,
	MethodSize:     1,
}

// Evidence is the optional raw-signal payload attached to a candidate group,
// populated by the perceptual stages for later scoring.
type Evidence struct {
	AvgDistance   float64
	Offset        int
	OverlapFrames int
	LongFrames    int
	Detector      string
}

// CandidateGroup is an immutable stage output: a set of files one stage
// believes are duplicates of each other.
type CandidateGroup struct {
	ID       string
	Method   Method
	Members  []identity.FileIdentity
	Evidence *Evidence
}

// NewCandidateGroup mints a group with a fresh id and a defensive copy of
// the member list.
func NewCandidateGroup(method Method, members []identity.FileIdentity, evidence *Evidence) CandidateGroup {
	return CandidateGroup{
		ID:       uuid.NewString(),
		Method:   method,
		Members:  append([]identity.FileIdentity{}, members...),
		Evidence: evidence,
	}
}

// DuplicateGroup is the terminal output of the core: one keep and its
// ordered losers.
type DuplicateGroup struct {
	ID     string
	Method Method
	Keep   identity.FileIdentity
	Losers []identity.FileIdentity
	Score  *scoring.ScoreCard
}
