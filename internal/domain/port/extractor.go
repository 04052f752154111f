package port

import "context"

// ClipExtractor cuts one bounded clip out of a source video, dropping the
// audio track. A failed extraction affects only that clip.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, videoPath string, startTime, duration float64, outputPath string) error
}
