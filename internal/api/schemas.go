package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

type UploadResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id"`
	VideoName string `json:"video_name"`
	Message   string `json:"message"`
}

type JobResponse struct {
	JobID         string  `json:"job_id"`
	VideoName     string  `json:"video_name"`
	Status        string  `json:"status"`
	Stage         string  `json:"stage,omitempty"`
	Progress      float64 `json:"progress"`
	Message       string  `json:"message,omitempty"`
	ShotCount     int     `json:"shot_count,omitempty"`
	SegmentCount  int     `json:"segment_count,omitempty"`
	VideoDuration float64 `json:"duration_seconds,omitempty"`
	Error         string  `json:"error,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   string  `json:"completed_at,omitempty"`
}

type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type SegmentsResponse struct {
	VideoName string                        `json:"video_name"`
	Segments  []entity.SegmentManifestEntry `json:"segments"`
}

// ProcessRequest optionally tunes detection for one job. Zero values fall
// back to the service defaults.
type ProcessRequest struct {
	Threshold      float64 `json:"threshold"`
	MinDurationSec float64 `json:"min_duration_sec"`
	MaxDurationSec float64 `json:"max_duration_sec"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func JobToResponse(job *entity.Job) JobResponse {
	resp := JobResponse{
		JobID:         job.ID.String(),
		VideoName:     job.VideoName,
		Status:        string(job.Status),
		Stage:         job.Stage,
		Progress:      job.Progress,
		Message:       job.Message,
		ShotCount:     job.ShotCount,
		SegmentCount:  job.SegmentCount,
		VideoDuration: job.VideoDuration,
		Error:         job.ErrorMessage,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: msg})
}
