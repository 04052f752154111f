package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/domain/port"
	"github.com/videorag/videorag-indexing-service/internal/infra/weights"
)

// allowedExtensions mirrors the formats the transcode step accepts.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// WeightsInspector reports local model weight files for the models endpoint.
type WeightsInspector interface {
	Stat(name string) weights.FileInfo
}

type Server struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	publisher port.IndexJobPublisher
	store     port.SceneStore
	weights   WeightsInspector
	logger    *zap.Logger
	cfg       ServerConfig
}

type ServerConfig struct {
	MaxUploadBytes int64
	WeightsFiles   []string
	ListLimit      int

	// Defaults substituted for zero-valued process-request fields, so the
	// merged policy can be rejected here instead of failing the job later.
	DefaultMinDurationSec float64
	DefaultMaxDurationSec float64
}

func NewServer(
	repo port.JobRepository,
	storage port.VideoStorage,
	publisher port.IndexJobPublisher,
	store port.SceneStore,
	weightsInspector WeightsInspector,
	logger *zap.Logger,
	cfg ServerConfig,
) *Server {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	if cfg.DefaultMinDurationSec <= 0 {
		cfg.DefaultMinDurationSec = 5
	}
	if cfg.DefaultMaxDurationSec <= 0 {
		cfg.DefaultMaxDurationSec = 12
	}
	return &Server{
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		store:     store,
		weights:   weightsInspector,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload/video", s.handleUploadVideo)
		r.Get("/models", s.handleModels)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Post("/process", s.handleProcessJob)
				r.Get("/segments", s.handleJobSegments)
			})
		})
		r.Delete("/videos/{videoName}/index", s.handleClearIndex)
	})

	return r
}

// VideoNameFromFilename derives the index key for a video from its uploaded
// filename, dropping directories and the extension.
func VideoNameFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		WriteError(w, http.StatusBadRequest, "unsupported video format "+ext)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	videoName := VideoNameFromFilename(header.Filename)
	job := entity.NewJob(userID, videoName, "", header.Size)
	job.VideoKey = job.ID.String() + "/" + filepath.Base(header.Filename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.UploadVideo(r.Context(), job.VideoKey, file, header.Size, contentType); err != nil {
		s.logger.Error("video upload failed", zap.Error(err), zap.String("video_name", videoName))
		WriteError(w, http.StatusInternalServerError, "failed to store video")
		return
	}

	if err := s.repo.Create(r.Context(), job); err != nil {
		s.logger.Error("job create failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		WriteError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	s.logger.Info("video uploaded",
		zap.String("job_id", job.ID.String()),
		zap.String("video_name", videoName),
		zap.Int64("size", header.Size),
	)

	WriteJSON(w, http.StatusCreated, UploadResponse{
		Success:   true,
		JobID:     job.ID.String(),
		VideoName: videoName,
		Message:   "video stored, call /process to start indexing",
	})
}

func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}
	if job.Status != entity.JobStatusPending {
		WriteError(w, http.StatusConflict, "job is "+strings.ToLower(string(job.Status))+", only pending jobs can be started")
		return
	}

	var req ProcessRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	minDur := req.MinDurationSec
	if minDur == 0 {
		minDur = s.cfg.DefaultMinDurationSec
	}
	maxDur := req.MaxDurationSec
	if maxDur == 0 {
		maxDur = s.cfg.DefaultMaxDurationSec
	}
	if _, err := entity.NewDurationPolicy(minDur, maxDur); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := entity.VideoIndexingMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		VideoName:      job.VideoName,
		VideoKey:       job.VideoKey,
		FileSize:       job.FileSize,
		UserEmail:      r.URL.Query().Get("notify_email"),
		Threshold:      req.Threshold,
		MinDurationSec: req.MinDurationSec,
		MaxDurationSec: req.MaxDurationSec,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to encode job message")
		return
	}

	if err := s.publisher.PublishIndexJob(r.Context(), raw); err != nil {
		s.logger.Error("publish index job failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		WriteError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	job.Message = "queued for indexing"
	if err := s.repo.Update(r.Context(), job); err != nil {
		s.logger.Warn("job update failed after enqueue", zap.Error(err), zap.String("job_id", job.ID.String()))
	}

	WriteJSON(w, http.StatusAccepted, JobToResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, JobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.repo.List(r.Context(), s.cfg.ListLimit)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, JobToResponse(job))
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobSegments(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}
	if job.Status != entity.JobStatusCompleted {
		WriteError(w, http.StatusConflict, "job has not completed indexing")
		return
	}

	manifest, err := s.store.Load(job.VideoName)
	if err != nil {
		s.logger.Error("load manifest failed", zap.Error(err), zap.String("video_name", job.VideoName))
		WriteError(w, http.StatusInternalServerError, "failed to load segment manifest")
		return
	}

	WriteJSON(w, http.StatusOK, SegmentsResponse{VideoName: job.VideoName, Segments: manifest})
}

func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	videoName := chi.URLParam(r, "videoName")
	if videoName == "" {
		WriteError(w, http.StatusBadRequest, "missing video name")
		return
	}

	if err := s.store.Clear(videoName); err != nil {
		s.logger.Error("clear index failed", zap.Error(err), zap.String("video_name", videoName))
		WriteError(w, http.StatusInternalServerError, "failed to clear index")
		return
	}

	s.logger.Info("index cleared", zap.String("video_name", videoName))
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "video_name": videoName})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	files := make([]weights.FileInfo, 0, len(s.cfg.WeightsFiles))
	ready := true
	for _, name := range s.cfg.WeightsFiles {
		info := s.weights.Stat(name)
		if !info.Exists {
			ready = false
		}
		files = append(files, info)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ready": ready, "files": files})
}

func (s *Server) findJob(w http.ResponseWriter, r *http.Request) (*entity.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return nil, false
	}
	job, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}
