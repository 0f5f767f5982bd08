package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SubtitleSpan is the minimal per-subtitle timing extract_reference_clips
// needs.
type SubtitleSpan struct {
	Index   int
	StartMs int64
	EndMs   int64
}

// ReferenceClip is one extracted reference audio clip for a subtitle index.
type ReferenceClip struct {
	SubtitleIndex int
	Path          string
}

// ExtractReferenceClips slices a reference audio clip per subtitle out of
// vocalAudioPath, for clone-mode jobs (spec §4.8/§4.5 reference input).
func ExtractReferenceClips(ctx context.Context, vocalAudioPath string, subtitles []SubtitleSpan, workDir string) ([]ReferenceClip, error) {
	refDir := filepath.Join(workDir, "reference")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		return nil, err
	}

	var clips []ReferenceClip
	for _, sub := range subtitles {
		durMs := sub.EndMs - sub.StartMs
		if durMs <= 0 {
			continue
		}
		startSecs := float64(sub.StartMs) / 1000.0
		durSecs := float64(durMs) / 1000.0
		outPath := filepath.Join(refDir, fmt.Sprintf("ref_%04d.wav", sub.Index))

		if err := runFFmpeg(ctx, "reference_extract",
			"-y", "-i", vocalAudioPath,
			"-ss", fmt.Sprintf("%.3f", startSecs),
			"-t", fmt.Sprintf("%.3f", durSecs),
			"-acodec", "pcm_s16le",
			outPath,
		); err != nil {
			return nil, err
		}
		clips = append(clips, ReferenceClip{SubtitleIndex: sub.Index, Path: outPath})
	}
	return clips, nil
}

// PrepareCustomReference copies a user-supplied reference audio file into
// workDir/reference, for custom-mode jobs.
func PrepareCustomReference(sourcePath, workDir string) (string, error) {
	refDir := filepath.Join(workDir, "reference")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		return "", err
	}
	ext := strings.TrimPrefix(filepath.Ext(sourcePath), ".")
	if ext == "" {
		ext = "wav"
	}
	dest := filepath.Join(refDir, "custom_ref."+ext)

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return dest, nil
}
