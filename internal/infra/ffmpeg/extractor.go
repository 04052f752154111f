package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Extractor cuts individual clips out of a source video.
type Extractor struct {
	ffmpegPath string
	logger     *zap.Logger
}

func NewExtractor(ffmpegPath string, logger *zap.Logger) *Extractor {
	return &Extractor{ffmpegPath: ffmpegPath, logger: logger}
}

func (e *Extractor) ExtractClip(ctx context.Context, videoPath string, startTime, duration float64, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", startTime),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", videoPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-an",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg extract clip: %w, output: %s", err, string(output))
	}

	e.logger.Debug("clip extracted",
		zap.String("output", outputPath),
		zap.Float64("start_time", startTime),
		zap.Float64("duration", duration),
	)

	return nil
}
