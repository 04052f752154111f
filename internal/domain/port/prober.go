package port

import "context"

// VideoProber reads container metadata from a video file.
type VideoProber interface {
	Duration(ctx context.Context, videoPath string) (float64, error)
}
