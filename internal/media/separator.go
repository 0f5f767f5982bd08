package media

import (
	"context"
	"path/filepath"
)

// SeparationResult is the pair of tracks separate_media extracts from a
// source video (spec §4.8).
type SeparationResult struct {
	VocalAudioPath  string
	SilentVideoPath string
}

// Separate extracts a vocals.wav audio track and a silent_video.mp4 video
// track from videoPath into workDir.
func Separate(ctx context.Context, videoPath, workDir string) (SeparationResult, error) {
	vocalPath := filepath.Join(workDir, "vocals.wav")
	silentPath := filepath.Join(workDir, "silent_video.mp4")

	if err := runFFmpeg(ctx, "media_separate",
		"-y", "-i", videoPath,
		"-vn", "-acodec", "pcm_s16le", "-ar", "44100", "-ac", "1",
		vocalPath,
	); err != nil {
		return SeparationResult{}, err
	}

	if err := runFFmpeg(ctx, "media_separate",
		"-y", "-i", videoPath,
		"-an", "-vcodec", "copy",
		silentPath,
	); err != nil {
		return SeparationResult{}, err
	}

	return SeparationResult{VocalAudioPath: vocalPath, SilentVideoPath: silentPath}, nil
}
