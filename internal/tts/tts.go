package tts

import (
	"context"
	"os"
)

// DurationProber measures the playback duration of an audio file.
type DurationProber interface {
	ProbeDurationMs(ctx context.Context, path string) (int64, error)
}

// durationMsOrFallback probes path's duration via prober; if probing fails,
// it estimates duration from file size at 128 kbps (spec §4.5).
func durationMsOrFallback(ctx context.Context, prober DurationProber, path string) int64 {
	if prober != nil {
		if ms, err := prober.ProbeDurationMs(ctx, path); err == nil {
			return ms
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	const bitrateBytesPerSec = 128 * 1024 / 8
	return info.Size() * 1000 / bitrateBytesPerSec
}
