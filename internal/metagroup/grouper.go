// Package metagroup clusters videos whose container metadata says they are
// probably the same content: near-equal duration, optionally reinforced by
// exact resolution, codec, or container matches.
package metagroup

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"dupelens/internal/dupegroup"
	"dupelens/internal/identity"
	"dupelens/internal/logging"
)

// Entry pairs a file with its probed metadata. Entries without usable
// metadata never group.
type Entry struct {
	ID      identity.FileIdentity
	Meta    identity.VideoMeta
	HasMeta bool
}

// Options controls how strict the metadata comparison is. Zero or negative
// tolerance disables duration matching entirely, which disables the stage.
type Options struct {
	DurationTolerance float64
	MatchResolution   bool
	MatchCodec        bool
	MatchContainer    bool
}

// Grouper implements the metadata stage.
type Grouper struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Grouper{opts: opts, logger: logging.WithComponent(logger, "metagroup")}
}

// Group clusters entries into metadata candidate groups. Durations are
// quantized into tolerance-width buckets so each entry only compares against
// its own bucket and the next one, keeping the stage linear-ish instead of
// all-pairs.
func (g *Grouper) Group(entries []Entry) []dupegroup.CandidateGroup {
	if g.opts.DurationTolerance <= 0 {
		return nil
	}

	usable := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.HasMeta && entry.Meta.DurationSeconds > 0 {
			usable = append(usable, entry)
		}
	}
	if len(usable) < 2 {
		return nil
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].ID.Path < usable[j].ID.Path })

	buckets := make(map[int64][]int)
	for i, entry := range usable {
		bucket := int64(math.Floor(entry.Meta.DurationSeconds / g.opts.DurationTolerance))
		buckets[bucket] = append(buckets[bucket], i)
	}

	uf := newUnionFind(len(usable))
	for bucket, indexes := range buckets {
		candidates := append([]int{}, indexes...)
		candidates = append(candidates, buckets[bucket+1]...)
		for a := 0; a < len(indexes); a++ {
			for b := 0; b < len(candidates); b++ {
				i, j := indexes[a], candidates[b]
				if i == j {
					continue
				}
				if g.similar(usable[i].Meta, usable[j].Meta) {
					uf.union(i, j)
				}
			}
		}
	}

	clusters := make(map[int][]identity.FileIdentity)
	for i, entry := range usable {
		root := uf.find(i)
		clusters[root] = append(clusters[root], entry.ID)
	}

	var groups []dupegroup.CandidateGroup
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, dupegroup.NewCandidateGroup(dupegroup.MethodMetadata, members, nil))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Members[0].Path < groups[j].Members[0].Path })

	g.logger.Debug("metadata grouping complete",
		slog.Int("usable", len(usable)),
		slog.Int("groups", len(groups)))
	return groups
}

func (g *Grouper) similar(a, b identity.VideoMeta) bool {
	if math.Abs(a.DurationSeconds-b.DurationSeconds) > g.opts.DurationTolerance {
		return false
	}
	if g.opts.MatchResolution && (a.Width != b.Width || a.Height != b.Height) {
		return false
	}
	if g.opts.MatchCodec && !strings.EqualFold(a.VideoCodec, b.VideoCodec) {
		return false
	}
	if g.opts.MatchContainer && !strings.EqualFold(a.Container, b.Container) {
		return false
	}
	return true
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
