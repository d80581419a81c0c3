// Package pipeline runs the duplicate-detection stages in their fixed order:
// hash cascade, metadata probe and grouping, perceptual matching, scoring,
// and winner selection. Stages are sequential; the per-file work inside each
// stage runs on a bounded worker pool.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"dupelens/internal/config"
	"dupelens/internal/dupegroup"
	"dupelens/internal/fpcache"
	"dupelens/internal/hashing"
	"dupelens/internal/identity"
	"dupelens/internal/logging"
	"dupelens/internal/metagroup"
	"dupelens/internal/phash"
	"dupelens/internal/probe"
	"dupelens/internal/scoring"
	"dupelens/internal/services"
)

// Stage names reported through the progress callback.
const (
	StageHash  = "hash"
	StageProbe = "probe"
	StagePhash = "phash"
)

// ProgressFunc receives per-stage completion counts. Calls may come from
// worker goroutines; implementations must be safe for concurrent use.
type ProgressFunc func(stage string, done, total int)

// Result is the outcome of one pipeline run.
type Result struct {
	RunID            string
	Groups           []dupegroup.DuplicateGroup
	FilesScanned     int
	BytesReclaimable int64
}

// Pipeline wires the stages together around a shared fingerprint cache.
type Pipeline struct {
	cfg       *config.Config
	cache     *fpcache.Cache
	prober    probe.Prober
	extractor phash.FrameExtractor
	logger    *slog.Logger
	progress  ProgressFunc
}

// New constructs a pipeline. A nil prober disables the metadata and
// perceptual stages; a nil extractor disables only the perceptual stage.
func New(cfg *config.Config, cache *fpcache.Cache, prober probe.Prober, extractor phash.FrameExtractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		cache:     cache,
		prober:    prober,
		extractor: extractor,
		logger:    logging.WithComponent(logger, "pipeline"),
	}
}

// SetProgress installs the progress callback. Must be called before Run.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

func (p *Pipeline) report(stage string, done, total int) {
	if p.progress != nil {
		p.progress(stage, done, total)
	}
}

func (p *Pipeline) workers() int {
	if p.cfg.Scan.Workers > 0 {
		return p.cfg.Scan.Workers
	}
	return runtime.NumCPU()
}

// Run executes every stage over the input files and resolves winners. The
// only error condition is cancellation; every degraded signal is logged and
// the run continues without it.
func (p *Pipeline) Run(ctx context.Context, files []identity.FileIdentity) (*Result, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := p.logger.With(slog.String(logging.FieldRunID, runID))
	logger.Info("scan started", slog.Int("files", len(files)))

	cascade := hashing.New(p.cache, hashing.DefaultAlgorithm(), p.workers(), logger)
	p.report(StageHash, 0, len(files))
	hashGroups := cascade.Run(services.WithStage(ctx, StageHash), files)
	p.report(StageHash, len(files), len(files))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metaByKey := p.probeStage(services.WithStage(ctx, StageProbe), files, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metaGroups := p.metadataStage(files, metaByKey, logger)

	phashGroups, subsetGroups := p.perceptualStage(services.WithStage(ctx, StagePhash), files, metaByKey, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]dupegroup.CandidateGroup, 0,
		len(hashGroups)+len(metaGroups)+len(phashGroups)+len(subsetGroups))
	candidates = append(candidates, hashGroups...)
	candidates = append(candidates, metaGroups...)
	candidates = append(candidates, phashGroups...)
	candidates = append(candidates, subsetGroups...)
	merged := dupegroup.Merge(candidates)

	lookup := func(id identity.FileIdentity) (identity.VideoMeta, bool) {
		meta, ok := metaByKey[id.Key()]
		return meta, ok
	}
	resolved := dupegroup.ChooseWinners(merged, p.cfg.Scan.KeepOrder, lookup)
	p.annotateScores(resolved, merged, lookup)

	result := &Result{
		RunID:        runID,
		Groups:       resolved,
		FilesScanned: len(files),
	}
	for _, group := range resolved {
		for _, loser := range group.Losers {
			result.BytesReclaimable += loser.Size
		}
	}
	logger.Info("scan complete",
		slog.Int("files", len(files)),
		slog.Int("groups", len(resolved)),
		slog.Int64("reclaimable_bytes", result.BytesReclaimable))
	return result, nil
}

// probeStage fills the metadata map from the cache or the prober. Probe
// failures are not cached so a transient failure retries next run.
func (p *Pipeline) probeStage(ctx context.Context, files []identity.FileIdentity, logger *slog.Logger) map[string]identity.VideoMeta {
	metaByKey := make(map[string]identity.VideoMeta, len(files))
	if p.prober == nil {
		logger.Warn("probe unavailable, metadata and perceptual stages skipped")
		return metaByKey
	}

	var mu sync.Mutex
	done := 0
	p.report(StageProbe, 0, len(files))

	workers := pool.New().WithMaxGoroutines(p.workers())
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		file := file
		workers.Go(func() {
			meta, ok := p.probeOne(ctx, file, logger)
			mu.Lock()
			if ok {
				metaByKey[file.Key()] = meta
			}
			done++
			count := done
			mu.Unlock()
			p.report(StageProbe, count, len(files))
		})
	}
	workers.Wait()
	return metaByKey
}

func (p *Pipeline) probeOne(ctx context.Context, file identity.FileIdentity, logger *slog.Logger) (identity.VideoMeta, bool) {
	if rec, ok := p.cache.Get(file); ok {
		if meta, cached := rec.Video(); cached {
			return meta, meta.DurationSeconds > 0
		}
	}
	meta, ok := p.prober.Probe(ctx, file.Path)
	if !ok {
		logger.Debug("no metadata", slog.String(logging.FieldPath, file.Path))
		return identity.VideoMeta{}, false
	}
	if err := p.cache.PutVideo(file, meta); err != nil {
		logger.Warn("metadata not persisted", slog.String(logging.FieldPath, file.Path), logging.Error(err))
	}
	return meta, true
}

func (p *Pipeline) metadataStage(files []identity.FileIdentity, metaByKey map[string]identity.VideoMeta, logger *slog.Logger) []dupegroup.CandidateGroup {
	entries := make([]metagroup.Entry, 0, len(files))
	for _, file := range files {
		meta, ok := metaByKey[file.Key()]
		entries = append(entries, metagroup.Entry{ID: file, Meta: meta, HasMeta: ok})
	}
	grouper := metagroup.New(metagroup.Options{
		DurationTolerance: p.cfg.Scan.DurationTolerance,
		MatchResolution:   p.cfg.Scan.MatchResolution,
		MatchCodec:        p.cfg.Scan.MatchCodec,
		MatchContainer:    p.cfg.Scan.MatchContainer,
	}, logger)
	return grouper.Group(entries)
}

// perceptualStage builds signatures for every file with a known duration and
// runs both perceptual passes.
func (p *Pipeline) perceptualStage(ctx context.Context, files []identity.FileIdentity, metaByKey map[string]identity.VideoMeta, logger *slog.Logger) ([]dupegroup.CandidateGroup, []dupegroup.CandidateGroup) {
	if p.extractor == nil {
		logger.Warn("frame extraction unavailable, perceptual stage skipped")
		return nil, nil
	}

	type target struct {
		file     identity.FileIdentity
		duration float64
	}
	var targets []target
	for _, file := range files {
		if meta, ok := metaByKey[file.Key()]; ok && meta.DurationSeconds > 0 {
			targets = append(targets, target{file: file, duration: meta.DurationSeconds})
		}
	}
	if len(targets) < 2 {
		return nil, nil
	}

	builder := phash.NewBuilder(p.extractor, p.cache, phash.ParseMode(p.cfg.Scan.Quality), logger)

	var mu sync.Mutex
	var entries []phash.Entry
	done := 0
	p.report(StagePhash, 0, len(targets))

	workers := pool.New().WithMaxGoroutines(p.workers())
	for _, tgt := range targets {
		if ctx.Err() != nil {
			break
		}
		tgt := tgt
		workers.Go(func() {
			sig, ok := builder.Signature(ctx, tgt.file, tgt.duration)
			mu.Lock()
			if ok {
				entries = append(entries, phash.Entry{ID: tgt.file, Sig: sig, Duration: tgt.duration})
			}
			done++
			count := done
			mu.Unlock()
			p.report(StagePhash, count, len(targets))
		})
	}
	workers.Wait()

	matcher := phash.Matcher{
		PhashThreshold:  p.cfg.Scan.PhashThreshold,
		SubsetThreshold: p.cfg.Scan.SubsetThreshold,
		SubsetMinRatio:  p.cfg.Scan.SubsetMinRatio,
	}
	return matcher.SameLengthGroups(entries), matcher.SubsetGroups(entries)
}

// annotateScores attaches a confidence card to every resolved group that has
// one to give. Byte-identical groups carry no card; identity needs none.
func (p *Pipeline) annotateScores(resolved []dupegroup.DuplicateGroup, candidates []dupegroup.CandidateGroup, lookup dupegroup.MetaLookup) {
	evidenceByID := make(map[string]*dupegroup.Evidence, len(candidates))
	for _, candidate := range candidates {
		evidenceByID[candidate.ID] = candidate.Evidence
	}

	opts := scoring.MetadataOptions{
		DurationTolerance:   p.cfg.Scan.DurationTolerance,
		PreferSameCodec:     p.cfg.Scan.MatchCodec,
		PreferSameContainer: p.cfg.Scan.MatchContainer,
	}

	for i := range resolved {
		group := &resolved[i]
		switch group.Method {
		case dupegroup.MethodMetadata:
			card := scoring.MetadataScore(metaInput(group.Keep, lookup), metaInput(group.Losers[0], lookup), opts)
			group.Score = &card
		case dupegroup.MethodPhash, dupegroup.MethodSubset:
			evidence := evidenceByID[group.ID]
			if evidence == nil {
				continue
			}
			card := scoring.SubsetScore(scoring.SubsetInput{
				AvgDistance:   evidence.AvgDistance,
				DurationRatio: durationRatio(group.Keep, group.Losers[0], lookup),
				OverlapFrames: evidence.OverlapFrames,
				LongFrames:    evidence.LongFrames,
				Detector:      evidence.Detector,
			})
			group.Score = &card
		}
	}
}

func metaInput(id identity.FileIdentity, lookup dupegroup.MetaLookup) scoring.MetaInput {
	meta, ok := lookup(id)
	return scoring.MetaInput{SizeBytes: id.Size, Meta: meta, HasMeta: ok}
}

func durationRatio(a, b identity.FileIdentity, lookup dupegroup.MetaLookup) float64 {
	metaA, okA := lookup(a)
	metaB, okB := lookup(b)
	if !okA || !okB || metaA.DurationSeconds <= 0 || metaB.DurationSeconds <= 0 {
		return 0
	}
	shorter := math.Min(metaA.DurationSeconds, metaB.DurationSeconds)
	longer := math.Max(metaA.DurationSeconds, metaB.DurationSeconds)
	return shorter / longer
}

// ProbeTimeout resolves the configured probe timeout.
func ProbeTimeout(cfg *config.Config) time.Duration {
	if cfg.Tools.ProbeTimeoutSeconds > 0 {
		return time.Duration(cfg.Tools.ProbeTimeoutSeconds) * time.Second
	}
	return probe.DefaultTimeout
}

// ExtractTimeout resolves the configured frame-extraction timeout.
func ExtractTimeout(cfg *config.Config) time.Duration {
	if cfg.Tools.ExtractTimeoutSeconds > 0 {
		return time.Duration(cfg.Tools.ExtractTimeoutSeconds) * time.Second
	}
	return phash.DefaultExtractTimeout
}
