package hashing

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sys/unix"

	"dupelens/internal/dupegroup"
	"dupelens/internal/fpcache"
	"dupelens/internal/identity"
	"dupelens/internal/logging"
	"dupelens/internal/services"
)

// Cascade finds byte-identical files through progressively more expensive
// signals. A file that fails to hash at any stage is excluded from that
// stage and the run continues.
type Cascade struct {
	cache   *fpcache.Cache
	algo    Algorithm
	workers int
	logger  *slog.Logger
}

// New constructs a cascade. Zero workers defaults to one per CPU.
func New(cache *fpcache.Cache, algo Algorithm, workers int, logger *slog.Logger) *Cascade {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cascade{
		cache:   cache,
		algo:    algo,
		workers: workers,
		logger:  logging.WithComponent(logger, "hash"),
	}
}

// inodeSet is a collection of paths sharing one device/inode pair. Hardlinks
// are byte-identical by construction, so only one representative per set
// ever gets hashed.
type inodeSet struct {
	rep     identity.FileIdentity
	members []identity.FileIdentity
}

// Run executes stages A (size), B (partial hash), and C (full hash) and
// returns the confirmed byte-identical groups tagged hash.
func (c *Cascade) Run(ctx context.Context, files []identity.FileIdentity) []dupegroup.CandidateGroup {
	buckets := bucketBySize(files)
	sets := c.collapseHardlinks(buckets)
	if len(sets) == 0 {
		return nil
	}

	partials := c.partialStage(ctx, sets)
	groups, grouped := c.fullStage(ctx, sets, partials)

	// Multi-path inode sets are identical without any hashing; emit the ones
	// that did not already land in a digest group.
	for _, set := range sets {
		if len(set.members) < 2 {
			continue
		}
		if _, ok := grouped[set.rep.Key()]; ok {
			continue
		}
		groups = append(groups, newHashGroup(set.members))
	}

	c.logger.Info("cascade complete",
		slog.Int("files", len(files)),
		slog.Int("size_collisions", len(sets)),
		slog.Int("groups", len(groups)))
	return groups
}

// bucketBySize is stage A: exact byte-size buckets, singletons discarded.
func bucketBySize(files []identity.FileIdentity) map[int64][]identity.FileIdentity {
	buckets := make(map[int64][]identity.FileIdentity)
	for _, file := range files {
		buckets[file.Size] = append(buckets[file.Size], file)
	}
	for size, members := range buckets {
		if len(members) < 2 {
			delete(buckets, size)
		}
	}
	return buckets
}

// collapseHardlinks folds files sharing a device/inode pair into one set per
// bucket and returns the sets in deterministic order. Files whose stat fails
// stay as single-member sets; they can still hash normally.
func (c *Cascade) collapseHardlinks(buckets map[int64][]identity.FileIdentity) []inodeSet {
	var sets []inodeSet
	for _, members := range buckets {
		byNode := make(map[[2]uint64][]identity.FileIdentity)
		var unstatable []identity.FileIdentity
		for _, member := range members {
			var st unix.Stat_t
			if err := unix.Stat(member.Path, &st); err != nil {
				unstatable = append(unstatable, member)
				continue
			}
			node := [2]uint64{uint64(st.Dev), uint64(st.Ino)}
			byNode[node] = append(byNode[node], member)
		}
		for _, linked := range byNode {
			sortByPath(linked)
			sets = append(sets, inodeSet{rep: linked[0], members: linked})
		}
		for _, member := range unstatable {
			sets = append(sets, inodeSet{rep: member, members: []identity.FileIdentity{member}})
		}
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].rep.Path < sets[j].rep.Path })
	return sets
}

// partialStage is stage B: compute or fetch the partial-hash tuple for every
// representative whose size bucket still has at least two distinct sets.
func (c *Cascade) partialStage(ctx context.Context, sets []inodeSet) map[string]identity.PartialHash {
	bySize := make(map[int64]int)
	for _, set := range sets {
		bySize[set.rep.Size]++
	}

	var mu sync.Mutex
	partials := make(map[string]identity.PartialHash, len(sets))

	workers := pool.New().WithMaxGoroutines(c.workers)
	for _, set := range sets {
		if bySize[set.rep.Size] < 2 {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		rep := set.rep
		workers.Go(func() {
			partial, err := c.partialFor(rep)
			if err != nil {
				c.logger.Warn("file excluded from partial-hash stage",
					slog.String(logging.FieldPath, rep.Path), logging.Error(err))
				return
			}
			mu.Lock()
			partials[rep.Key()] = partial
			mu.Unlock()
		})
	}
	workers.Wait()
	return partials
}

func (c *Cascade) partialFor(id identity.FileIdentity) (identity.PartialHash, error) {
	if rec, ok := c.cache.Get(id); ok {
		if cached, ok := rec.Partial(); ok && cached.Algorithm == c.algo.Name() && cached.SpanBytes == SpanBytes {
			return cached, nil
		}
	}
	partial, err := ComputePartial(id.Path, id.Size, c.algo)
	if err != nil {
		return identity.PartialHash{}, services.Wrap(services.ErrHash, "hash", "partial", "", err)
	}
	if err := c.cache.PutPartial(id, partial); err != nil {
		c.logger.Warn("partial hash not persisted", slog.String(logging.FieldPath, id.Path), logging.Error(err))
	}
	return partial, nil
}

// fullStage is stage C: full hashes only for partial sub-buckets with at
// least two representatives, grouped by exact digest equality. Returns the
// groups plus the set of representative keys that landed in a group.
func (c *Cascade) fullStage(ctx context.Context, sets []inodeSet, partials map[string]identity.PartialHash) ([]dupegroup.CandidateGroup, map[string]struct{}) {
	type subKey struct {
		size   int64
		bucket string
	}
	subBuckets := make(map[subKey][]inodeSet)
	for _, set := range sets {
		partial, ok := partials[set.rep.Key()]
		if !ok {
			continue
		}
		key := subKey{size: set.rep.Size, bucket: partial.BucketKey()}
		subBuckets[key] = append(subBuckets[key], set)
	}

	var mu sync.Mutex
	digests := make(map[string]string)

	workers := pool.New().WithMaxGoroutines(c.workers)
	for _, colliding := range subBuckets {
		if len(colliding) < 2 {
			continue
		}
		for _, set := range colliding {
			if ctx.Err() != nil {
				break
			}
			rep := set.rep
			workers.Go(func() {
				digest, err := c.fullFor(rep)
				if err != nil {
					c.logger.Warn("file excluded from full-hash stage",
						slog.String(logging.FieldPath, rep.Path), logging.Error(err))
					return
				}
				mu.Lock()
				digests[rep.Key()] = digest
				mu.Unlock()
			})
		}
	}
	workers.Wait()

	type digestKey struct {
		size   int64
		digest string
	}
	byDigest := make(map[digestKey][]inodeSet)
	for _, colliding := range subBuckets {
		for _, set := range colliding {
			digest, ok := digests[set.rep.Key()]
			if !ok {
				continue
			}
			key := digestKey{size: set.rep.Size, digest: digest}
			byDigest[key] = append(byDigest[key], set)
		}
	}

	var groups []dupegroup.CandidateGroup
	grouped := make(map[string]struct{})
	for _, matching := range byDigest {
		var members []identity.FileIdentity
		for _, set := range matching {
			members = append(members, set.members...)
		}
		if len(members) < 2 {
			continue
		}
		for _, set := range matching {
			grouped[set.rep.Key()] = struct{}{}
		}
		groups = append(groups, newHashGroup(members))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Members[0].Path < groups[j].Members[0].Path })
	return groups, grouped
}

func (c *Cascade) fullFor(id identity.FileIdentity) (string, error) {
	if rec, ok := c.cache.Get(id); ok {
		if digest, ok := rec.FullHash(); ok && digest != "" {
			return digest, nil
		}
	}
	digest, err := FullHash(id.Path)
	if err != nil {
		return "", services.Wrap(services.ErrHash, "hash", "full", "", err)
	}
	if err := c.cache.PutFullHash(id, digest); err != nil {
		c.logger.Warn("full hash not persisted", slog.String(logging.FieldPath, id.Path), logging.Error(err))
	}
	return digest, nil
}

func newHashGroup(members []identity.FileIdentity) dupegroup.CandidateGroup {
	sortByPath(members)
	return dupegroup.NewCandidateGroup(dupegroup.MethodHash, members, nil)
}

func sortByPath(members []identity.FileIdentity) {
	sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
}
