package scene

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/domain/port"
)

// Materializer extracts each final segment as an independent clip file and
// builds the manifest for the scene store.
type Materializer struct {
	extractor port.ClipExtractor
	logger    *zap.Logger
}

func NewMaterializer(extractor port.ClipExtractor, logger *zap.Logger) *Materializer {
	return &Materializer{extractor: extractor, logger: logger}
}

// Materialize writes one clip per segment into outputDir and returns manifest
// entries for the clips that were written, in original segment order.
//
// A single failed extraction is logged and skipped; it never aborts the
// batch. Clip names use a 4-digit zero-padded shot id, matching the naming
// downstream consumers already rely on (ids above 9999 collide; known
// limitation kept for compatibility).
func (m *Materializer) Materialize(ctx context.Context, videoPath, outputDir string, segments []entity.Segment) ([]entity.SegmentManifestEntry, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create segments dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	entries := make([]entity.SegmentManifestEntry, 0, len(segments))

	for i, seg := range segments {
		segmentID := fmt.Sprintf("%s_scene_%04d", base, seg.ShotID)
		outputPath := filepath.Join(outputDir, segmentID+".mp4")
		duration := seg.Duration()

		if err := m.extractor.ExtractClip(ctx, videoPath, seg.StartTime, duration, outputPath); err != nil {
			m.logger.Warn("segment extraction failed, skipping",
				zap.Int("index", i),
				zap.String("segment_id", segmentID),
				zap.Float64("start_time", seg.StartTime),
				zap.Error(err),
			)
			continue
		}

		entries = append(entries, entity.SegmentManifestEntry{
			SegmentID:  segmentID,
			SceneID:    seg.ShotID,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			StartFrame: seg.StartFrame,
			EndFrame:   seg.EndFrame,
			Duration:   duration,
			FilePath:   outputPath,
		})
	}

	m.logger.Info("segments materialized",
		zap.Int("requested", len(segments)),
		zap.Int("written", len(entries)),
	)

	return entries, nil
}
