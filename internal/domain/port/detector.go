package port

import (
	"context"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

// ShotDetector produces raw shot boundaries for a prepared video. Only
// boundaries whose signal strength exceeds threshold are reported. The model
// behind it is heavyweight: implementations load lazily on first use, keep
// the loaded model across calls, and serialize inference. Release frees the
// model; a later detection loads again from scratch.
type ShotDetector interface {
	DetectRawShots(ctx context.Context, videoPath string, threshold float64) ([]entity.ShotBoundary, error)
	Release()
}
