package scenestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

// FileStore persists segment manifests as JSON files in a working directory,
// one file per video. It is the cache gate in front of the detection
// pipeline: a non-empty load means the video is already indexed.
type FileStore struct {
	workingDir string
	logger     *zap.Logger
}

func NewFileStore(workingDir string, logger *zap.Logger) *FileStore {
	return &FileStore{workingDir: workingDir, logger: logger}
}

func (s *FileStore) manifestPath(videoName string) string {
	return filepath.Join(s.workingDir, videoName+"_scenes.json")
}

func (s *FileStore) Save(videoName string, manifest []entity.SegmentManifestEntry) error {
	if err := os.MkdirAll(s.workingDir, 0o755); err != nil {
		return fmt.Errorf("create working dir: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := s.manifestPath(videoName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	s.logger.Info("scene manifest saved",
		zap.String("video", videoName),
		zap.String("path", path),
		zap.Int("segments", len(manifest)),
	)
	return nil
}

// Load returns the persisted manifest for a video. A missing or unreadable
// manifest is a cache miss, not an error: the caller re-runs detection.
func (s *FileStore) Load(videoName string) ([]entity.SegmentManifestEntry, error) {
	data, err := os.ReadFile(s.manifestPath(videoName))
	if err != nil {
		if os.IsNotExist(err) {
			return []entity.SegmentManifestEntry{}, nil
		}
		s.logger.Warn("manifest unreadable, treating as missing",
			zap.String("video", videoName), zap.Error(err))
		return []entity.SegmentManifestEntry{}, nil
	}

	var manifest []entity.SegmentManifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		s.logger.Warn("manifest corrupt, treating as missing",
			zap.String("video", videoName), zap.Error(err))
		return []entity.SegmentManifestEntry{}, nil
	}

	return manifest, nil
}

// Clear removes the manifest and every clip file it references. The two are
// one durable artifact: they are only ever deleted together.
func (s *FileStore) Clear(videoName string) error {
	manifest, err := s.Load(videoName)
	if err != nil {
		return err
	}

	for _, entry := range manifest {
		if err := os.Remove(entry.FilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove clip %s: %w", entry.FilePath, err)
		}
	}

	if err := os.Remove(s.manifestPath(videoName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manifest: %w", err)
	}

	s.logger.Info("scene index cleared",
		zap.String("video", videoName),
		zap.Int("clips_removed", len(manifest)),
	)
	return nil
}
