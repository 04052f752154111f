package entity

import "github.com/google/uuid"

// VideoIndexingMessage is the inbound message on the video.indexing queue.
// Detection parameters are carried per job so a caller can tune boundary
// sensitivity and the duration policy at upload time.
type VideoIndexingMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	VideoName      string    `json:"video_name"`
	VideoKey       string    `json:"video_key"`
	FileSize       int64     `json:"file_size"`
	UserEmail      string    `json:"user_email"`
	Threshold      float64   `json:"threshold"`
	MinDurationSec float64   `json:"min_duration_sec"`
	MaxDurationSec float64   `json:"max_duration_sec"`
}

// IndexStatusMessage is the outbound message published to the video.status
// queue as the pipeline advances.
type IndexStatusMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	UserID        string    `json:"user_id"`
	VideoName     string    `json:"video_name"`
	Status        JobStatus `json:"status"`
	Stage         string    `json:"stage,omitempty"`
	Progress      float64   `json:"progress"`
	Message       string    `json:"message,omitempty"`
	ShotCount     int       `json:"shot_count,omitempty"`
	SegmentCount  int       `json:"segment_count,omitempty"`
	VideoDuration float64   `json:"duration_seconds,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}
