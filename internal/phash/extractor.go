package phash

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dupelens/internal/logging"
)

// DefaultExtractTimeout bounds a single ffmpeg invocation.
const DefaultExtractTimeout = 2 * time.Minute

// DefaultThumbnailSize is the square edge frames are scaled to before
// hashing. The DCT hash only looks at coarse structure, so tiny frames
// carry the full signal at a fraction of the decode cost.
const DefaultThumbnailSize = 32

// FrameExtractor produces one raster frame per requested timestamp. The
// returned slice always has the same length as the timestamp list; entries
// that could not be decoded are nil.
type FrameExtractor interface {
	Extract(ctx context.Context, path string, timestamps []float64) ([]image.Image, error)
}

// FFmpegExtractor is the production FrameExtractor backed by the ffmpeg
// binary. It first tries a single batched invocation; timestamps the batch
// misses fall back to one seek-and-grab call each.
type FFmpegExtractor struct {
	binary    string
	timeout   time.Duration
	thumbSize int
	hwaccel   bool
	logger    *slog.Logger
}

// NewFFmpegExtractor constructs an FFmpegExtractor. Empty or non-positive
// arguments fall back to defaults.
func NewFFmpegExtractor(binary string, timeout time.Duration, thumbSize int, hwaccel bool, logger *slog.Logger) *FFmpegExtractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	if thumbSize <= 0 {
		thumbSize = DefaultThumbnailSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpegExtractor{
		binary:    binary,
		timeout:   timeout,
		thumbSize: thumbSize,
		hwaccel:   hwaccel,
		logger:    logging.WithComponent(logger, "extract"),
	}
}

// Extract decodes frames at the given timestamps. Individual frame failures
// leave nil entries; only an empty timestamp list or an unusable workspace
// returns an error.
func (e *FFmpegExtractor) Extract(ctx context.Context, path string, timestamps []float64) ([]image.Image, error) {
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("no timestamps requested")
	}

	workDir, err := os.MkdirTemp("", "dupelens-frames-")
	if err != nil {
		return nil, fmt.Errorf("frame workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	frames := make([]image.Image, len(timestamps))

	batched, err := e.extractBatch(ctx, path, timestamps, workDir)
	if err != nil {
		e.logger.Debug("batch extraction failed, falling back to per-frame seeks",
			slog.String(logging.FieldPath, path), logging.Error(err))
	} else {
		copy(frames, batched)
	}

	for i, stamp := range timestamps {
		if frames[i] != nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		frame, err := e.extractSingle(ctx, path, stamp, workDir, i)
		if err != nil {
			e.logger.Debug("frame skipped",
				slog.String(logging.FieldPath, path),
				slog.Float64("timestamp", stamp),
				logging.Error(err))
			continue
		}
		frames[i] = frame
	}
	return frames, nil
}

// extractBatch pulls all frames in one pass using an fps filter matched to
// the timestamp spacing. Returns frames in temporal order; the slice may be
// shorter than requested when the container ends early.
func (e *FFmpegExtractor) extractBatch(ctx context.Context, path string, timestamps []float64, workDir string) ([]image.Image, error) {
	spacing := timestamps[0] * 2
	if len(timestamps) > 1 {
		spacing = timestamps[1] - timestamps[0]
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("non-increasing timestamps")
	}

	batchDir := filepath.Join(workDir, "batch")
	if err := os.Mkdir(batchDir, 0o755); err != nil {
		return nil, err
	}
	pattern := filepath.Join(batchDir, "frame-%05d.png")
	filter := fmt.Sprintf("fps=1/%s,scale=%d:%d",
		strconv.FormatFloat(spacing, 'f', -1, 64), e.thumbSize, e.thumbSize)

	args := []string{"-hide_banner", "-loglevel", "error"}
	if e.hwaccel {
		args = append(args, "-hwaccel", "auto")
	}
	args = append(args,
		"-i", path,
		"-vf", filter,
		"-frames:v", strconv.Itoa(len(timestamps)),
		"-f", "image2",
		pattern)

	if err := e.run(ctx, args); err != nil {
		if !e.hwaccel {
			return nil, err
		}
		// Hardware decode is opportunistic. Retry once on the CPU path.
		cpu := append([]string{"-hide_banner", "-loglevel", "error"}, args[5:]...)
		if err := e.run(ctx, cpu); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		frame, err := decodeFrame(filepath.Join(batchDir, name))
		if err != nil {
			frames = append(frames, nil)
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// extractSingle seeks to one timestamp and grabs a single frame.
func (e *FFmpegExtractor) extractSingle(ctx context.Context, path string, timestamp float64, workDir string, index int) (image.Image, error) {
	out := filepath.Join(workDir, fmt.Sprintf("single-%05d.png", index))
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", e.thumbSize, e.thumbSize),
		"-f", "image2",
		out,
	}
	if err := e.run(ctx, args); err != nil {
		return nil, err
	}
	return decodeFrame(out)
}

func (e *FFmpegExtractor) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w", firstLine(detail), err)
		}
		return err
	}
	return nil
}

func decodeFrame(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return png.Decode(file)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
