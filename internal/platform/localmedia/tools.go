package localmedia

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// Tools wraps the system media binaries used on uploaded recordings.
//
// Optional binary: ffprobe. Without it recordings are stored with a zero
// duration.
type Tools interface {
	Available() bool
	ProbeDuration(ctx context.Context, mediaPath string) (int, error)
	WriteTempFile(ctx context.Context, r io.Reader, suffix string) (string, func(), error)
}

type tools struct {
	log *logger.Logger

	ffprobePath string
	workRoot    string

	defaultTimeout time.Duration
}

func New(log *logger.Logger, workRoot string) Tools {
	if strings.TrimSpace(workRoot) == "" {
		workRoot = filepath.Join(os.TempDir(), "speakwell-media")
	}
	return &tools{
		log:            log.With("service", "MediaTools"),
		ffprobePath:    "ffprobe",
		workRoot:       workRoot,
		defaultTimeout: 30 * time.Second,
	}
}

func (m *tools) Available() bool {
	_, err := exec.LookPath(m.ffprobePath)
	return err == nil
}

func (m *tools) WriteTempFile(ctx context.Context, r io.Reader, suffix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	f, err := os.CreateTemp(m.workRoot, "upload-*"+suffix)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// ProbeDuration returns the container duration in whole seconds, rounded.
func (m *tools) ProbeDuration(ctx context.Context, mediaPath string) (int, error) {
	ctx = ctxutil.Default(ctx)
	if mediaPath == "" {
		return 0, fmt.Errorf("mediaPath required")
	}
	if !m.Available() {
		return 0, fmt.Errorf("missing binary %q in PATH", m.ffprobePath)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w; out=%s", err, string(out))
	}
	return parseDuration(string(out))
}

func parseDuration(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return int(math.Round(secs)), nil
}
