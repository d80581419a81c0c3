package dupegroup

import (
	"sort"
	"strings"

	"dupelens/internal/identity"
)

// MetaLookup reports probed metadata for an identity, or absence.
type MetaLookup func(identity.FileIdentity) (identity.VideoMeta, bool)

// Sentinel keep-key values for files without probed metadata. A file that
// could not be probed ranks below any probed file on video criteria.
const (
	sentinelDuration   = -1.0
	sentinelResolution = 0
	sentinelBitrate    = 0
)

// ChooseWinners selects a keep per group under the caller-supplied criterion
// order. Criteria: duration (longer), resolution (higher area), bitrate
// (higher video bitrate), mtime (newer), size (smaller), depth (deeper path).
// Path length breaks remaining ties, favoring the longer path; the path
// string itself is the final fallback so the sort is a total order.
func ChooseWinners(groups []CandidateGroup, keepOrder []string, meta MetaLookup) []DuplicateGroup {
	if meta == nil {
		meta = func(identity.FileIdentity) (identity.VideoMeta, bool) { return identity.VideoMeta{}, false }
	}

	resolved := make([]DuplicateGroup, 0, len(groups))
	for _, group := range groups {
		if len(group.Members) < 2 {
			continue
		}
		members := append([]identity.FileIdentity{}, group.Members...)
		sort.SliceStable(members, func(i, j int) bool {
			return keepLess(members[j], members[i], keepOrder, meta)
		})
		resolved = append(resolved, DuplicateGroup{
			ID:     group.ID,
			Method: group.Method,
			Keep:   members[0],
			Losers: members[1:],
		})
	}
	return resolved
}

// keepLess reports whether a ranks strictly below b under the keep order.
func keepLess(a, b identity.FileIdentity, keepOrder []string, meta MetaLookup) bool {
	av := keepKey(a, keepOrder, meta)
	bv := keepKey(b, keepOrder, meta)
	for i := range av {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	return strings.Compare(a.Path, b.Path) < 0
}

// keepKey builds the per-criterion value tuple; larger is better on every
// axis, so size inverts.
func keepKey(id identity.FileIdentity, keepOrder []string, meta MetaLookup) []float64 {
	video, hasMeta := meta(id)
	key := make([]float64, 0, len(keepOrder))
	for _, criterion := range keepOrder {
		switch criterion {
		case "duration":
			if hasMeta && video.DurationSeconds > 0 {
				key = append(key, video.DurationSeconds)
			} else {
				key = append(key, sentinelDuration)
			}
		case "resolution":
			if hasMeta {
				key = append(key, float64(video.ResolutionArea()))
			} else {
				key = append(key, sentinelResolution)
			}
		case "bitrate":
			key = append(key, float64(bitrateOf(video, hasMeta)))
		case "mtime":
			key = append(key, float64(id.ModTime.UnixNano()))
		case "size":
			key = append(key, -float64(id.Size))
		case "depth":
			key = append(key, float64(id.Depth()))
		}
	}
	return key
}

func bitrateOf(video identity.VideoMeta, hasMeta bool) int64 {
	if !hasMeta {
		return sentinelBitrate
	}
	if video.VideoBitRate > 0 {
		return video.VideoBitRate
	}
	return video.BitRate
}

// Merge drops stage outputs that duplicate an already-seen member set,
// keeping the highest-certainty method, and orders the result by certainty
// then group size. Stage outputs themselves are never mutated.
func Merge(groups []CandidateGroup) []CandidateGroup {
	bySet := make(map[string]CandidateGroup, len(groups))
	order := make([]string, 0, len(groups))
	for _, group := range groups {
		if len(group.Members) < 2 {
			continue
		}
		key := memberSetKey(group.Members)
		existing, seen := bySet[key]
		if !seen {
			bySet[key] = group
			order = append(order, key)
			continue
		}
		if certainty[group.Method] > certainty[existing.Method] {
			bySet[key] = group
		}
	}

	merged := make([]CandidateGroup, 0, len(bySet))
	for _, key := range order {
		merged = append(merged, bySet[key])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if certainty[merged[i].Method] != certainty[merged[j].Method] {
			return certainty[merged[i].Method] > certainty[merged[j].Method]
		}
		return len(merged[i].Members) > len(merged[j].Members)
	})
	return merged
}

func memberSetKey(members []identity.FileIdentity) string {
	keys := make([]string, 0, len(members))
	for _, member := range members {
		keys = append(keys, member.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}
