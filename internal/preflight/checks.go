package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"convoy/internal/config"
	"convoy/internal/deps"
)

// ErrNotWritable reports a directory that exists but cannot receive output.
var ErrNotWritable = errors.New("directory not writable")

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// EnsureWritableDir creates path if needed and confirms it is a directory the
// current user can write into. The orchestrator runs it once per submission.
func EnsureWritableDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("output directory not set")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, path, err)
	}
	return nil
}

// CheckNtfy verifies the ntfy server behind topic answers HTTP requests.
func CheckNtfy(ctx context.Context, topic string, timeout time.Duration) Result {
	const name = "ntfy"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Name: name, Detail: "Disabled"}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, topic, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSystemDeps evaluates the external binaries required by the configured
// engine backend. The drapto backend drives ffmpeg from PATH; the ffmpeg
// backend uses the configured binary.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	binary := cfg.Engine.FFmpegBinary
	description := "Required by the ffmpeg engine backend"
	if cfg.Engine.Backend == config.BackendDrapto {
		binary = "ffmpeg"
		description = "Used by drapto for encoding"
	}
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     binary,
			Description: description,
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(binary),
			Description: "Used to inspect sources before encoding",
			Optional:    cfg.Engine.Backend == config.BackendFFmpeg,
		},
	}
	statuses := deps.CheckBinaries(requirements)
	if len(statuses) > 0 && statuses[0].Available {
		if version, err := deps.FFmpegVersion(ctx, binary); err == nil {
			statuses[0].Detail = version
		}
	}
	return statuses
}
