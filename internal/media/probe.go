package media

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/leica1994/dubverse/internal/dubverrs"
)

// Prober invokes ffprobe in JSON mode to read a media file's duration,
// satisfying tts.DurationProber (spec §4.5/§6 probing).
type Prober struct{}

// NewProber returns an ffprobe-backed duration prober.
func NewProber() *Prober { return &Prober{} }

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDurationMs returns path's duration in milliseconds.
func (Prober) ProbeDurationMs(ctx context.Context, path string) (int64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return 0, dubverrs.MediaTool("probe", err.Error())
	}
	var parsed probeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, dubverrs.MediaTool("probe", "unparsable ffprobe output: "+string(out))
	}
	secs, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, dubverrs.MediaTool("probe", "unparsable ffprobe output: "+string(out))
	}
	return int64(secs * 1000), nil
}
