package port

import "context"

// VideoPreparer normalizes a video to a canonical frame rate and height
// before detection. The output path is a pure function of the input name,
// fps and height, so repeated calls with the same arguments are free.
type VideoPreparer interface {
	Prepare(ctx context.Context, videoPath string, targetFPS, targetHeight int) (string, error)
}
