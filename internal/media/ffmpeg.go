// Package media wraps the ffmpeg/ffprobe invocations that separate,
// reference, align, and compose audio/video for a dubbing job (spec
// §4.6, §4.8, §4.9), grounded on original_source/src-tauri/src/media/*.rs.
package media

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/leica1994/dubverse/internal/dubverrs"
)

// runFFmpeg invokes ffmpeg with args, capturing stderr for error reporting.
func runFFmpeg(ctx context.Context, stage string, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return dubverrs.MediaTool(stage, "ffmpeg not installed or not on PATH")
		}
		return dubverrs.MediaTool(stage, stderr.String())
	}
	return nil
}
