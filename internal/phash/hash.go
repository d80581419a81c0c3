package phash

import (
	"context"
	"image"
	"log/slog"

	"github.com/corona10/goimagehash"

	"dupelens/internal/fpcache"
	"dupelens/internal/identity"
	"dupelens/internal/logging"
)

// HashFrame reduces one frame to its 64-bit DCT perceptual hash.
func HashFrame(frame image.Image) (uint64, error) {
	hash, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return 0, err
	}
	return hash.GetHash(), nil
}

// Builder computes and caches perceptual signatures. A video whose frames
// cannot be extracted gets an empty signature persisted so later runs skip
// it without re-invoking ffmpeg.
type Builder struct {
	extractor FrameExtractor
	cache     *fpcache.Cache
	mode      Mode
	logger    *slog.Logger
}

// NewBuilder constructs a Builder. The cache may be nil for uncached use.
func NewBuilder(extractor FrameExtractor, cache *fpcache.Cache, mode Mode, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		extractor: extractor,
		cache:     cache,
		mode:      mode,
		logger:    logging.WithComponent(logger, "phash"),
	}
}

// Signature returns the perceptual signature for a video, consulting the
// cache first. The second return is false when the signature is unavailable,
// including the cached-unavailable case.
func (b *Builder) Signature(ctx context.Context, id identity.FileIdentity, durationSeconds float64) (identity.Signature, bool) {
	if b.cache != nil {
		if rec, ok := b.cache.Get(id); ok {
			if sig, computed := rec.Signature(); computed {
				if len(sig) == 0 {
					return nil, false
				}
				return sig, true
			}
		}
	}

	sig, ok := b.compute(ctx, id, durationSeconds)
	if b.cache != nil && ctx.Err() == nil {
		stored := sig
		if !ok {
			stored = nil
		}
		if err := b.cache.PutSignature(id, stored); err != nil {
			b.logger.Warn("signature not persisted", slog.String(logging.FieldPath, id.Path), logging.Error(err))
		}
	}
	if !ok {
		return nil, false
	}
	return sig, true
}

func (b *Builder) compute(ctx context.Context, id identity.FileIdentity, durationSeconds float64) (identity.Signature, bool) {
	if durationSeconds <= 0 {
		return nil, false
	}
	plan := PlanFor(durationSeconds, b.mode)
	count := plan.FrameCount(durationSeconds)
	stamps := Timestamps(durationSeconds, count)

	frames, err := b.extractor.Extract(ctx, id.Path, stamps)
	if err != nil {
		b.logger.Debug("frame extraction unavailable",
			slog.String(logging.FieldPath, id.Path), logging.Error(err))
		return nil, false
	}

	sig := make(identity.Signature, 0, len(frames))
	for i, frame := range frames {
		if frame == nil {
			continue
		}
		hash, err := HashFrame(frame)
		if err != nil {
			b.logger.Debug("frame hash failed",
				slog.String(logging.FieldPath, id.Path),
				slog.Int("frame", i),
				logging.Error(err))
			continue
		}
		sig = append(sig, hash)
	}

	// A signature built from under half the requested frames would compare
	// different temporal positions against each other.
	if len(sig)*2 < count {
		b.logger.Debug("too few frames for a usable signature",
			slog.String(logging.FieldPath, id.Path),
			slog.Int("got", len(sig)),
			slog.Int("want", count))
		return nil, false
	}
	return sig, true
}
