package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Preparer normalizes a video to a target frame rate and height ahead of
// shot detection. The output name is derived from the input name and the
// target parameters, so an already-prepared video is reused as-is.
type Preparer struct {
	ffmpegPath string
	logger     *zap.Logger
}

func NewPreparer(ffmpegPath string, logger *zap.Logger) *Preparer {
	return &Preparer{ffmpegPath: ffmpegPath, logger: logger}
}

func (p *Preparer) Prepare(ctx context.Context, videoPath string, targetFPS, targetHeight int) (string, error) {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputDir := filepath.Join(filepath.Dir(videoPath), "prepared")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create prepared dir: %w", err)
	}

	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s_prepared_%dfps_%dp.mp4", base, targetFPS, targetHeight))

	if _, err := os.Stat(outputPath); err == nil {
		p.logger.Info("reusing prepared video", zap.String("path", outputPath))
		return outputPath, nil
	}

	// scale=-2 keeps the aspect ratio while forcing an even width for the
	// encoder; audio is dropped, shot detection never needs it.
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d,scale=-2:%d", targetFPS, targetHeight),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-an",
		"-vsync", "vfr",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg prepare: %w, output: %s", err, string(output))
	}

	p.logger.Info("video prepared",
		zap.String("input", videoPath),
		zap.String("output", outputPath),
		zap.Int("target_fps", targetFPS),
		zap.Int("target_height", targetHeight),
	)

	return outputPath, nil
}
