package port

import "github.com/videorag/videorag-indexing-service/internal/domain/entity"

// SceneStore persists the segment manifest for a video. Load returns an
// empty manifest and no error when nothing was saved; the pipeline treats
// that as the signal to run detection.
type SceneStore interface {
	Save(videoName string, manifest []entity.SegmentManifestEntry) error
	Load(videoName string) ([]entity.SegmentManifestEntry, error)
	Clear(videoName string) error
}
