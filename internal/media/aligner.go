package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leica1994/dubverse/internal/dubverrs"
)

// AlignedSegment is one completed TTS item, sorted by subtitle_index,
// carrying the data the aligner's cursor walk needs (spec §4.6).
type AlignedSegment struct {
	SubtitleIndex int
	StartMs       int64
	TtsAudioPath  string
	TtsDurationMs int64
}

// AlignAndConcat walks segments in order, inserting silence for gaps and
// padding/trimming each clip to its slot, then concatenates everything into
// one continuous dubbed audio track of length totalDurationMs.
func AlignAndConcat(ctx context.Context, segments []AlignedSegment, totalDurationMs int64, workDir string) (string, error) {
	if len(segments) == 0 {
		return "", dubverrs.NoAudio("align")
	}

	concatDir := filepath.Join(workDir, "aligned")
	if err := os.MkdirAll(concatDir, 0o755); err != nil {
		return "", err
	}

	var entries []string
	var cursorMs int64

	for i, seg := range segments {
		gapBefore := seg.StartMs - cursorMs
		if gapBefore > 10 {
			silencePath := filepath.Join(concatDir, fmt.Sprintf("silence_%04d.wav", i))
			if err := generateSilence(ctx, float64(gapBefore)/1000.0, silencePath); err != nil {
				return "", err
			}
			entries = append(entries, concatFileEntry(silencePath))
		}

		var nextStart int64
		if i+1 < len(segments) {
			nextStart = segments[i+1].StartMs
		} else {
			nextStart = totalDurationMs
		}
		plan := planSegment(seg.TtsDurationMs, nextStart-seg.StartMs)

		alignedPath := filepath.Join(concatDir, fmt.Sprintf("aligned_%04d.wav", i))
		var err error
		switch plan.action {
		case actionPad:
			err = padWithSilence(ctx, seg.TtsAudioPath, float64(plan.amountMs)/1000.0, alignedPath)
		case actionTrim:
			err = trimAudio(ctx, seg.TtsAudioPath, float64(plan.amountMs)/1000.0, alignedPath)
		default:
			err = copyAudioFile(seg.TtsAudioPath, alignedPath)
		}
		if err != nil {
			return "", err
		}

		entries = append(entries, concatFileEntry(alignedPath))
		cursorMs = seg.StartMs + plan.usedMs
	}

	if cursorMs < totalDurationMs {
		tailMs := totalDurationMs - cursorMs
		tailPath := filepath.Join(concatDir, "tail_silence.wav")
		if err := generateSilence(ctx, float64(tailMs)/1000.0, tailPath); err != nil {
			return "", err
		}
		entries = append(entries, concatFileEntry(tailPath))
	}

	listPath := filepath.Join(workDir, "concat_list.txt")
	content := ""
	for _, e := range entries {
		content += e + "\n"
	}
	if err := os.WriteFile(listPath, []byte(content), 0o644); err != nil {
		return "", err
	}

	outputPath := filepath.Join(workDir, "dubbed_audio.wav")
	if err := runFFmpeg(ctx, "align",
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-acodec", "pcm_s16le", "-ar", "44100",
		outputPath,
	); err != nil {
		return "", err
	}

	return outputPath, nil
}

type segmentAction int

const (
	actionCopy segmentAction = iota
	actionPad
	actionTrim
)

// segmentPlan is the pad/trim/used-length decision for one aligned clip.
type segmentPlan struct {
	action   segmentAction
	amountMs int64 // pad or trim amount, meaningful only for actionPad/actionTrim
	usedMs   int64 // effective length the cursor advances by
}

// planSegment implements §4.6's pad/trim decision. subtitle_dur_ms is
// uniformly available_ms (resolved open question, §4.6/§9), which collapses
// the spec's three-way case split to two: the "pass through" middle case
// never applies since its bounds coincide with the pad case's.
func planSegment(ttsDurationMs, availableMs int64) segmentPlan {
	subtitleDurMs := availableMs
	if ttsDurationMs <= subtitleDurMs {
		padMs := subtitleDurMs - ttsDurationMs
		if padMs == 0 {
			return segmentPlan{action: actionCopy, usedMs: subtitleDurMs}
		}
		return segmentPlan{action: actionPad, amountMs: padMs, usedMs: subtitleDurMs}
	}
	maxMs := int64(float64(subtitleDurMs) * 1.3)
	if maxMs > availableMs {
		maxMs = availableMs
	}
	return segmentPlan{action: actionTrim, amountMs: maxMs, usedMs: maxMs}
}

func concatFileEntry(path string) string {
	return fmt.Sprintf("file '%s'", path)
}

func generateSilence(ctx context.Context, durationSecs float64, outputPath string) error {
	return runFFmpeg(ctx, "align",
		"-y", "-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.3f", durationSecs),
		"-acodec", "pcm_s16le",
		outputPath,
	)
}

func padWithSilence(ctx context.Context, audioPath string, padSecs float64, outputPath string) error {
	return runFFmpeg(ctx, "align",
		"-y", "-i", audioPath,
		"-af", fmt.Sprintf("apad=pad_dur=%.3f", padSecs),
		"-acodec", "pcm_s16le",
		outputPath,
	)
}

func trimAudio(ctx context.Context, audioPath string, maxSecs float64, outputPath string) error {
	return runFFmpeg(ctx, "align",
		"-y", "-i", audioPath,
		"-t", fmt.Sprintf("%.3f", maxSecs),
		"-acodec", "pcm_s16le",
		outputPath,
	)
}

func copyAudioFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
