package scenestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

func sampleManifest(clipDir string) []entity.SegmentManifestEntry {
	return []entity.SegmentManifestEntry{
		{
			SegmentID:  "lecture_scene_0000",
			SceneID:    0,
			StartTime:  0,
			EndTime:    8,
			StartFrame: 0,
			EndFrame:   8,
			Duration:   8,
			FilePath:   filepath.Join(clipDir, "lecture_scene_0000.mp4"),
		},
		{
			SegmentID:  "lecture_scene_0001",
			SceneID:    1,
			StartTime:  8,
			EndTime:    19.5,
			StartFrame: 8,
			EndFrame:   19,
			Duration:   11.5,
			FilePath:   filepath.Join(clipDir, "lecture_scene_0001.mp4"),
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	manifest := sampleManifest("/clips")

	require.NoError(t, store.Save("lecture", manifest))

	loaded, err := store.Load("lecture")
	require.NoError(t, err)
	assert.Equal(t, manifest, loaded)
}

func TestLoadMissingManifestIsEmptyNotError(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())

	loaded, err := store.Load("never-saved")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadCorruptManifestIsCacheMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_scenes.json"), []byte("{not json"), 0o644))

	loaded, err := store.Load("bad")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestClearRemovesManifestAndClips(t *testing.T) {
	dir := t.TempDir()
	clipDir := filepath.Join(dir, "segments")
	require.NoError(t, os.MkdirAll(clipDir, 0o755))

	store := NewFileStore(dir, zap.NewNop())
	manifest := sampleManifest(clipDir)
	for _, e := range manifest {
		require.NoError(t, os.WriteFile(e.FilePath, []byte("clip"), 0o644))
	}
	require.NoError(t, store.Save("lecture", manifest))

	require.NoError(t, store.Clear("lecture"))

	loaded, err := store.Load("lecture")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	for _, e := range manifest {
		_, statErr := os.Stat(e.FilePath)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestClearMissingIndexIsNoop(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	assert.NoError(t, store.Clear("nothing"))
}
