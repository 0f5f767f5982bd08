package media

import "context"

// Compose maps silentVideoPath's video stream onto dubbedAudioPath's audio
// stream into outputPath (spec §4.9).
func Compose(ctx context.Context, silentVideoPath, dubbedAudioPath, outputPath string) error {
	return runFFmpeg(ctx, "compose",
		"-y",
		"-i", silentVideoPath,
		"-i", dubbedAudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outputPath,
	)
}
