package phash

import (
	"sort"

	"dupelens/internal/dupegroup"
	"dupelens/internal/identity"
)

// Entry pairs a file with its computed perceptual signature and probed
// duration. Duration decides short/long roles in the subset pass.
type Entry struct {
	ID       identity.FileIdentity
	Sig      identity.Signature
	Duration float64
}

// Matcher holds the distance thresholds for both perceptual passes.
type Matcher struct {
	// PhashThreshold is the maximum average Hamming distance for
	// same-length matches.
	PhashThreshold float64
	// SubsetThreshold is the looser ceiling for sliding-window alignment.
	SubsetThreshold float64
	// SubsetMinRatio is the smallest short/long duration ratio worth
	// aligning. Tiny fragments inside long media match by chance.
	SubsetMinRatio float64
}

const (
	detectorPhash  = "phash"
	detectorSubset = "subset"
)

// SameLengthGroups clusters entries whose signatures have equal frame counts
// and whose average prefix distance stays under the phash threshold. Matches
// are transitive within a cluster.
func (m Matcher) SameLengthGroups(entries []Entry) []dupegroup.CandidateGroup {
	byLength := make(map[int][]Entry)
	for _, entry := range entries {
		if len(entry.Sig) < minOverlapFrames {
			continue
		}
		byLength[len(entry.Sig)] = append(byLength[len(entry.Sig)], entry)
	}

	var groups []dupegroup.CandidateGroup
	for _, peers := range byLength {
		if len(peers) < 2 {
			continue
		}
		sort.Slice(peers, func(i, j int) bool { return peers[i].ID.Path < peers[j].ID.Path })

		uf := newUnionFind(len(peers))
		type pairStat struct {
			count int
			total float64
		}
		stats := make(map[int]*pairStat)

		for i := 0; i < len(peers); i++ {
			for j := i + 1; j < len(peers); j++ {
				distance, ok := PrefixDistance(peers[i].Sig, peers[j].Sig)
				if !ok || distance > m.PhashThreshold {
					continue
				}
				uf.union(i, j)
				root := uf.find(i)
				stat, exists := stats[root]
				if !exists {
					stat = &pairStat{}
					stats[root] = stat
				}
				stat.count++
				stat.total += distance
			}
		}

		clusters := make(map[int][]identity.FileIdentity)
		for i, entry := range peers {
			root := uf.find(i)
			clusters[root] = append(clusters[root], entry.ID)
		}
		for root, members := range clusters {
			if len(members) < 2 {
				continue
			}
			// Union by rank can migrate the stat root mid-scan; sum every
			// stat bucket that resolves here.
			var stat pairStat
			for origin, s := range stats {
				if uf.find(origin) == root {
					stat.count += s.count
					stat.total += s.total
				}
			}
			evidence := &dupegroup.Evidence{
				OverlapFrames: len(peers[0].Sig),
				LongFrames:    len(peers[0].Sig),
				Detector:      detectorPhash,
			}
			if stat.count > 0 {
				evidence.AvgDistance = stat.total / float64(stat.count)
			}
			groups = append(groups, dupegroup.NewCandidateGroup(dupegroup.MethodPhash, members, evidence))
		}
	}
	sortGroups(groups)
	return groups
}

// SubsetGroups scans unequal-length pairs for a short signature embedded
// inside a long one. Each detected containment is its own two-member group;
// subset relations are not transitive.
func (m Matcher) SubsetGroups(entries []Entry) []dupegroup.CandidateGroup {
	usable := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Sig) >= minOverlapFrames {
			usable = append(usable, entry)
		}
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].ID.Path < usable[j].ID.Path })

	var groups []dupegroup.CandidateGroup
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			short, long := usable[i], usable[j]
			if short.Duration > long.Duration {
				short, long = long, short
			}
			if short.Duration <= 0 || short.Duration == long.Duration {
				continue
			}
			if short.Duration/long.Duration < m.SubsetMinRatio {
				continue
			}
			// Adaptive bands can sample a shorter file more densely than a
			// longer one; with the roles inverted no alignment exists.
			if len(short.Sig) > len(long.Sig) {
				continue
			}
			// Equal frame counts belong to the same-length pass.
			if len(short.Sig) == len(long.Sig) {
				continue
			}
			alignment, ok := BestAlignment(short.Sig, long.Sig, m.SubsetThreshold)
			if !ok {
				continue
			}
			evidence := &dupegroup.Evidence{
				AvgDistance:   alignment.AvgDistance,
				Offset:        alignment.Offset,
				OverlapFrames: alignment.OverlapFrames,
				LongFrames:    len(long.Sig),
				Detector:      detectorSubset,
			}
			members := []identity.FileIdentity{short.ID, long.ID}
			groups = append(groups, dupegroup.NewCandidateGroup(dupegroup.MethodSubset, members, evidence))
		}
	}
	sortGroups(groups)
	return groups
}

func sortGroups(groups []dupegroup.CandidateGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0].Path < groups[j].Members[0].Path
	})
}

// unionFind is a plain disjoint-set over slice indexes.
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
