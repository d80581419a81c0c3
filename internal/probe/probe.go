package probe

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"dupelens/internal/identity"
	"dupelens/internal/logging"
)

// DefaultTimeout bounds a single ffprobe invocation.
const DefaultTimeout = 30 * time.Second

// Prober reports video metadata for a path, or absence when the file could
// not be inspected. Implementations must not require elevated privileges.
type Prober interface {
	Probe(ctx context.Context, path string) (identity.VideoMeta, bool)
}

// FFprobe is the production Prober backed by the ffprobe binary.
type FFprobe struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe constructs an FFprobe wrapper. An empty binary defaults to
// "ffprobe"; a non-positive timeout defaults to DefaultTimeout.
func NewFFprobe(binary string, timeout time.Duration, logger *slog.Logger) *FFprobe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFprobe{binary: binary, timeout: timeout, logger: logging.WithComponent(logger, "probe")}
}

// Probe executes ffprobe against the path and decodes the JSON response.
// Any failure returns absence rather than an error.
func (p *FFprobe) Probe(ctx context.Context, path string) (identity.VideoMeta, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return identity.VideoMeta{}, false
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.binary,
		"-v", "error",
		"-hide_banner",
		"-show_entries", "stream=codec_type,codec_name,width,height,bit_rate",
		"-show_entries", "format=duration,format_name,bit_rate",
		"-of", "json",
		"--", path)
	output, err := cmd.Output()
	if err != nil {
		p.logger.Debug("probe failed",
			slog.String(logging.FieldPath, path),
			logging.Error(err),
			slog.Bool("timeout", probeCtx.Err() != nil))
		return identity.VideoMeta{}, false
	}

	meta, err := parseOutput(output)
	if err != nil {
		p.logger.Debug("probe output unparseable", slog.String(logging.FieldPath, path), logging.Error(err))
		return identity.VideoMeta{}, false
	}
	return meta, true
}
