// Package encoder assembles frames into a video with an external ffmpeg
// process.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single encode.
const DefaultTimeout = 600 * time.Second

// Frame is one image shown for Duration.
type Frame struct {
	Path     string
	Duration time.Duration
}

// FFmpeg encodes frames with the concat demuxer and libx264.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpeg creates an encoder for the binary at path. A zero timeout uses
// DefaultTimeout.
func NewFFmpeg(binary string, timeout time.Duration, logger *slog.Logger) *FFmpeg {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FFmpeg{binary: binary, timeout: timeout, logger: logger}
}

// Encode writes an MP4 to outPath. The video is produced under a temporary
// name and renamed on success, so a failed run leaves nothing at outPath.
func (e *FFmpeg) Encode(ctx context.Context, frames []Frame, outPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrFailed)
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	list, err := os.CreateTemp("", "facelapse-concat-*.txt")
	if err != nil {
		return fmt.Errorf("creating concat list: %w", err)
	}
	listPath := list.Name()
	defer os.Remove(listPath)

	_, err = list.WriteString(ConcatList(frames))
	if closeErr := list.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}

	tmpPath := filepath.Join(dir, ".tmp-"+filepath.Base(outPath))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-vf", "format=yuv420p",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-movflags", "+faststart",
		"-f", "mp4",
		tmpPath,
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v: %s", ErrFailed, err, tail(stderr.String(), 2000))
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("moving %s to %s: %w", tmpPath, outPath, err)
	}

	e.logger.Info("encoded video", "path", outPath, "frames", len(frames), "duration", time.Since(start))
	return nil
}

// ConcatList renders frames in the ffmpeg concat demuxer format. The last
// frame is listed twice so its duration is honored.
func ConcatList(frames []Frame) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "file '%s'\n", quote(f.Path))
		fmt.Fprintf(&b, "duration %s\n", strconv.FormatFloat(f.Duration.Seconds(), 'f', -1, 64))
	}
	if len(frames) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", quote(frames[len(frames)-1].Path))
	}
	return b.String()
}

func quote(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
