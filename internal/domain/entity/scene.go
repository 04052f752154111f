package entity

import "fmt"

// ShotBoundary is one raw shot reported by the boundary detector, before any
// duration policy is applied. Detectors emit shots in strictly increasing
// time order with dense ids starting at 0; together the shots partition the
// whole video duration.
type ShotBoundary struct {
	ShotID     int     `json:"shot_id"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}

func (s ShotBoundary) Duration() float64 {
	return s.EndTime - s.StartTime
}

// DurationPolicy bounds the length of emitted segments. It is immutable for
// the lifetime of one pipeline invocation.
type DurationPolicy struct {
	MinDurationSec float64
	MaxDurationSec float64
}

func NewDurationPolicy(minSec, maxSec float64) (DurationPolicy, error) {
	if minSec <= 0 {
		return DurationPolicy{}, fmt.Errorf("min duration must be positive, got %g", minSec)
	}
	if maxSec <= minSec {
		return DurationPolicy{}, fmt.Errorf("max duration %g must exceed min duration %g", maxSec, minSec)
	}
	return DurationPolicy{MinDurationSec: minSec, MaxDurationSec: maxSec}, nil
}

// Segment is one policy-conforming slice of a video. Sub-splits of a long
// shot carry ids incremented from the parent shot, so ShotID values are not
// unique across the raw shot list.
type Segment struct {
	ShotID     int     `json:"shot_id"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}

func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// SegmentManifestEntry is the durable record of one materialized clip. The
// entry and the clip file it points at live and die together: both are
// removed only when the video's index is explicitly cleared.
type SegmentManifestEntry struct {
	SegmentID  string  `json:"segment_id"`
	SceneID    int     `json:"scene_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	Duration   float64 `json:"duration"`
	FilePath   string  `json:"file_path"`
}
