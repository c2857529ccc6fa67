package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// EnvVar names the environment variable that may point at ffmpeg.
const EnvVar = "FACELAPSE_FFMPEG"

// BinaryInfo describes a located ffmpeg binary.
type BinaryInfo struct {
	Path    string
	Version string
}

// Finder locates the ffmpeg binary.
type Finder struct {
	// CustomPath comes from configuration and is tried first.
	CustomPath string
	EnvVar     string
}

// NewFinder creates a Finder.
func NewFinder(customPath string) *Finder {
	return &Finder{
		CustomPath: customPath,
		EnvVar:     EnvVar,
	}
}

// Find tries, in order: the configured path, the environment variable, PATH,
// and the directory of the running executable.
func (f *Finder) Find(ctx context.Context) (*BinaryInfo, error) {
	var candidates []string

	if f.CustomPath != "" {
		candidates = append(candidates, f.CustomPath)
	}
	if f.EnvVar != "" {
		if envPath := os.Getenv(f.EnvVar); envPath != "" {
			candidates = append(candidates, envPath)
		}
	}
	if pathBin, err := exec.LookPath(binaryName()); err == nil {
		candidates = append(candidates, pathBin)
	}
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		platformDir := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
		candidates = append(candidates,
			filepath.Join(execDir, "bin", platformDir, binaryName()),
			filepath.Join(execDir, "bin", binaryName()),
			filepath.Join(execDir, binaryName()),
		)
	}

	for _, path := range candidates {
		if info, err := check(ctx, path); err == nil {
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: install ffmpeg, set %s, or configure video.ffmpeg_path", ErrNotFound, f.EnvVar)
}

func check(ctx context.Context, path string) (*BinaryInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, absPath, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("running %s -version: %w", absPath, err)
	}

	return &BinaryInfo{Path: absPath, Version: parseVersion(string(output))}, nil
}

// parseVersion extracts the version from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(output string) string {
	line, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}
