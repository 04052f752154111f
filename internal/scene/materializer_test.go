package scene

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

// stubExtractor fails for the shot ids in failIDs and records every call.
type stubExtractor struct {
	failIDs map[int]bool
	calls   []string
}

func (s *stubExtractor) ExtractClip(_ context.Context, _ string, startTime, duration float64, outputPath string) error {
	s.calls = append(s.calls, outputPath)
	for id := range s.failIDs {
		if filepath.Base(outputPath) == fmt.Sprintf("movie_scene_%04d.mp4", id) {
			return errors.New("simulated extraction failure")
		}
	}
	return nil
}

func testSegments(n int) []entity.Segment {
	segs := make([]entity.Segment, n)
	for i := range segs {
		start := float64(i) * 10
		segs[i] = entity.Segment{
			ShotID:     i,
			StartTime:  start,
			EndTime:    start + 10,
			StartFrame: i * 10,
			EndFrame:   (i + 1) * 10,
		}
	}
	return segs
}

func TestMaterializeAllSegments(t *testing.T) {
	ex := &stubExtractor{}
	m := NewMaterializer(ex, zap.NewNop())

	entries, err := m.Materialize(context.Background(), "/videos/movie.mp4", t.TempDir(), testSegments(3))
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "movie_scene_0000", entries[0].SegmentID)
	assert.Equal(t, "movie_scene_0002", entries[2].SegmentID)
	assert.Equal(t, 0, entries[0].SceneID)
	assert.Equal(t, 10.0, entries[0].Duration)
	assert.Equal(t, entries[1].FilePath, filepath.Join(filepath.Dir(entries[0].FilePath), "movie_scene_0001.mp4"))
}

func TestMaterializeSkipsFailedSegment(t *testing.T) {
	ex := &stubExtractor{failIDs: map[int]bool{2: true}}
	m := NewMaterializer(ex, zap.NewNop())

	entries, err := m.Materialize(context.Background(), "/videos/movie.mp4", t.TempDir(), testSegments(5))
	require.NoError(t, err)

	// One failure out of five: four entries, original relative order kept.
	require.Len(t, entries, 4)
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.SceneID)
	}
	assert.Equal(t, []int{0, 1, 3, 4}, ids)
	// All five extractions were still attempted.
	assert.Len(t, ex.calls, 5)
}

func TestMaterializeZeroPadsSceneID(t *testing.T) {
	ex := &stubExtractor{}
	m := NewMaterializer(ex, zap.NewNop())

	entries, err := m.Materialize(context.Background(), "/videos/movie.mp4", t.TempDir(), []entity.Segment{
		{ShotID: 123, StartTime: 0, EndTime: 10},
	})
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "movie_scene_0123", entries[0].SegmentID)
}
