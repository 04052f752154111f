package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job tracks the indexing of one uploaded video. Once processing starts a
// job only ever reaches COMPLETED or FAILED; there is no retry and no
// mid-flight cancellation.
type Job struct {
	ID            uuid.UUID
	UserID        string
	VideoName     string
	VideoKey      string
	Status        JobStatus
	Stage         string
	Progress      float64
	Message       string
	FileSize      int64
	ShotCount     int
	SegmentCount  int
	VideoDuration float64
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewJob(userID, videoName, videoKey string, fileSize int64) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		UserID:    userID,
		VideoName: videoName,
		VideoKey:  videoKey,
		FileSize:  fileSize,
		Status:    JobStatusPending,
		Message:   "video uploaded",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Message = "indexing started"
	j.UpdatedAt = time.Now().UTC()
}

// SetProgress records the current pipeline stage and completion fraction.
func (j *Job) SetProgress(stage string, fraction float64, message string) {
	j.Stage = stage
	j.Progress = fraction
	j.Message = message
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(shotCount, segmentCount int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Progress = 1.0
	j.Message = "indexing completed"
	j.ShotCount = shotCount
	j.SegmentCount = segmentCount
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.Message = "indexing failed"
	j.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}
