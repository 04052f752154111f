package transnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/domain/port"
)

// DefaultWeightsName is the TransNetV2 weights file published on HuggingFace.
const DefaultWeightsName = "transnetv2-pytorch-weights.pth"

type state int

const (
	stateUnloaded state = iota
	stateReady
)

// Detector wraps the TransNetV2 shot-transition model, invoked through an
// external inference runner. Loading is lazy and memoized: the first
// detection ensures the weights are on disk and resolves the runner binary,
// later detections reuse both. The model is a single heavyweight resource,
// so the mutex serializes loading, inference and release.
type Detector struct {
	mu          sync.Mutex
	state       state
	weightsPath string
	runnerPath  string

	weights     port.WeightsProvider
	weightsName string
	runnerName  string
	logger      *zap.Logger
}

type DetectorConfig struct {
	RunnerName  string
	WeightsName string
}

func NewDetector(weights port.WeightsProvider, cfg DetectorConfig, logger *zap.Logger) *Detector {
	name := cfg.WeightsName
	if name == "" {
		name = DefaultWeightsName
	}
	return &Detector{
		weights:     weights,
		weightsName: name,
		runnerName:  cfg.RunnerName,
		logger:      logger,
	}
}

func (d *Detector) DetectRawShots(ctx context.Context, videoPath string, threshold float64) ([]entity.ShotBoundary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(ctx); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.runnerPath,
		"--weights", d.weightsPath,
		"--video", videoPath,
		"--threshold", strconv.FormatFloat(threshold, 'f', -1, 64),
		"--format", "json",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transnet inference: %w, stderr: %s", err, stderr.String())
	}

	var result struct {
		Shots []entity.ShotBoundary `json:"shots"`
		Error string                `json:"error,omitempty"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parse transnet output: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("transnet inference: %s", result.Error)
	}

	if err := validateShots(result.Shots); err != nil {
		return nil, fmt.Errorf("transnet output invalid: %w", err)
	}

	d.logger.Info("raw shots detected",
		zap.String("video", videoPath),
		zap.Int("shots", len(result.Shots)),
		zap.Float64("threshold", threshold),
	)

	return result.Shots, nil
}

// Release frees the loaded model. The next detection loads from scratch.
func (d *Detector) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateUnloaded {
		return
	}
	d.state = stateUnloaded
	d.weightsPath = ""
	d.runnerPath = ""
	d.logger.Info("transnet model released")
}

func (d *Detector) loadLocked(ctx context.Context) error {
	if d.state == stateReady {
		return nil
	}

	weightsPath, err := d.weights.Ensure(ctx, d.weightsName)
	if err != nil {
		return fmt.Errorf("ensure transnet weights: %w", err)
	}

	runnerPath, err := exec.LookPath(d.runnerName)
	if err != nil {
		return fmt.Errorf("transnet runner %q not found: %w", d.runnerName, err)
	}

	d.weightsPath = weightsPath
	d.runnerPath = runnerPath
	d.state = stateReady

	d.logger.Info("transnet model loaded",
		zap.String("weights", weightsPath),
		zap.String("runner", runnerPath),
	)

	return nil
}

// validateShots enforces the raw shot contract: dense ids from 0, positive
// durations, and a contiguous partition of the video timeline.
func validateShots(shots []entity.ShotBoundary) error {
	for i, s := range shots {
		if s.ShotID != i {
			return fmt.Errorf("shot %d has id %d, want dense ordinals", i, s.ShotID)
		}
		if s.EndTime <= s.StartTime {
			return fmt.Errorf("shot %d has non-positive duration [%g, %g)", i, s.StartTime, s.EndTime)
		}
		if i == 0 {
			if s.StartTime != 0 {
				return fmt.Errorf("first shot starts at %g, want 0", s.StartTime)
			}
			continue
		}
		if s.StartTime != shots[i-1].EndTime {
			return fmt.Errorf("shot %d starts at %g, previous ends at %g", i, s.StartTime, shots[i-1].EndTime)
		}
	}
	return nil
}
