package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/domain/port"
	"github.com/videorag/videorag-indexing-service/internal/infra/metrics"
	"github.com/videorag/videorag-indexing-service/internal/scene"
)

// IndexVideoUseCase runs the whole indexing pipeline for one video:
// download, prepare, detect raw shots, apply the duration policy,
// materialize clips, persist the manifest.
type IndexVideoUseCase struct {
	repo         port.JobRepository
	storage      port.VideoStorage
	preparer     port.VideoPreparer
	prober       port.VideoProber
	detector     port.ShotDetector
	materializer *scene.Materializer
	store        port.SceneStore
	statusPub    port.StatusPublisher
	dlq          port.DLQPublisher
	notifier     port.FailureNotifier
	logger       *zap.Logger
	cfg          IndexVideoConfig
}

type IndexVideoConfig struct {
	TempDir            string
	WorkingDir         string
	TargetFPS          int
	TargetHeight       int
	DefaultThreshold   float64
	DefaultMinDuration float64
	DefaultMaxDuration float64
}

func NewIndexVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	preparer port.VideoPreparer,
	prober port.VideoProber,
	detector port.ShotDetector,
	materializer *scene.Materializer,
	store port.SceneStore,
	statusPub port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg IndexVideoConfig,
) *IndexVideoUseCase {
	return &IndexVideoUseCase{
		repo:         repo,
		storage:      storage,
		preparer:     preparer,
		prober:       prober,
		detector:     detector,
		materializer: materializer,
		store:        store,
		statusPub:    statusPub,
		dlq:          dlq,
		notifier:     notifier,
		logger:       logger,
		cfg:          cfg,
	}
}

// Execute handles one indexing message. It returns nil on every path: a job
// is attempted exactly once and ends COMPLETED or FAILED, never requeued,
// and any failure before or during the pipeline routes the raw payload to
// the DLQ so the broker never discards it silently.
func (uc *IndexVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "IndexVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoIndexingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_name", msg.VideoName),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_name", msg.VideoName))

	// The consumer nacks without requeue and the queue carries no dead-letter
	// arguments, so every failure here must route the payload to the DLQ
	// itself or the message is lost.
	job, err := uc.repo.FindByID(ctx, msg.JobID)
	switch {
	case errors.Is(err, port.ErrJobNotFound):
		job = entity.NewJob(msg.UserID, msg.VideoName, msg.VideoKey, msg.FileSize)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "create_job_error: "+err.Error())
			return nil
		}
	case err != nil:
		log.Error("failed to look up job record", zap.Error(err))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "find_job_error: "+err.Error())
		return nil
	}

	if job.IsTerminal() {
		log.Info("job already in terminal state, ignoring redelivery", zap.String("status", string(job.Status)))
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "update_job_error: "+err.Error())
		return nil
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, log); err != nil {
		uc.handleFailure(ctx, job, msg, rawMsg, err.Error(), log)
		return nil
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *IndexVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoIndexingMessage,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	threshold := msg.Threshold
	if threshold == 0 {
		threshold = uc.cfg.DefaultThreshold
	}
	minDur := msg.MinDurationSec
	if minDur == 0 {
		minDur = uc.cfg.DefaultMinDuration
	}
	maxDur := msg.MaxDurationSec
	if maxDur == 0 {
		maxDur = uc.cfg.DefaultMaxDuration
	}

	policy, err := entity.NewDurationPolicy(minDur, maxDur)
	if err != nil {
		return fmt.Errorf("invalid duration policy: %w", err)
	}

	// Cache gate: a persisted manifest means the video is already indexed
	// and the whole detection pipeline can be skipped.
	existing, err := uc.store.Load(msg.VideoName)
	if err != nil {
		return fmt.Errorf("load scene manifest: %w", err)
	}
	if len(existing) > 0 {
		log.Info("scene index already exists, skipping detection",
			zap.Int("segments", len(existing)))
		job.MarkCompleted(0, len(existing), existing[len(existing)-1].EndTime)
		if err := uc.repo.Update(ctx, job); err != nil {
			return fmt.Errorf("update job completed: %w", err)
		}
		uc.publishStatus(ctx, job, log)
		return nil
	}

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download source video
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	uc.reportProgress(ctx, job, "download", 0.1, "downloading video", log)
	videoPath := filepath.Join(workDir, filepath.Base(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		return fmt.Errorf("download video: %w", err)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	videoDuration, err := uc.prober.Duration(ctx, videoPath)
	if err != nil {
		log.Warn("ffprobe duration failed, falling back to detected shot range", zap.Error(err))
		videoDuration = 0
	}

	// Normalize frame rate and resolution
	prepStart := time.Now()
	ctxPrep, spanPrep := tracer.Start(ctx, "prepare_video")
	uc.reportProgress(ctx, job, "prepare", 0.25, "normalizing video", log)
	preparedPath, err := uc.preparer.Prepare(ctxPrep, videoPath, uc.cfg.TargetFPS, uc.cfg.TargetHeight)
	if err != nil {
		spanPrep.End()
		return fmt.Errorf("prepare video: %w", err)
	}
	spanPrep.End()
	metrics.StageDuration.WithLabelValues("prepare").Observe(time.Since(prepStart).Seconds())

	// Raw shot boundaries
	detStart := time.Now()
	ctxDet, spanDet := tracer.Start(ctx, "detect_shots")
	uc.reportProgress(ctx, job, "detect", 0.5, "detecting shot boundaries", log)
	shots, err := uc.detector.DetectRawShots(ctxDet, preparedPath, threshold)
	if err != nil {
		spanDet.End()
		return fmt.Errorf("detect shots: %w", err)
	}
	spanDet.End()
	metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(detStart).Seconds())
	metrics.ShotsDetectedTotal.Add(float64(len(shots)))

	if videoDuration == 0 && len(shots) > 0 {
		videoDuration = shots[len(shots)-1].EndTime
	}

	// Duration policy
	res := scene.ApplyPolicy(shots, policy, uc.cfg.TargetFPS)
	metrics.SegmentsEmittedTotal.Add(float64(res.Emitted))
	metrics.SegmentsDroppedTotal.WithLabelValues(metrics.DropReasonShortShot).Add(float64(res.DroppedShort))
	metrics.SegmentsDroppedTotal.WithLabelValues(metrics.DropReasonTrailingRemainder).Add(float64(res.DroppedRemainder))
	log.Info("duration policy applied",
		zap.Int("raw_shots", res.RawShots),
		zap.Int("emitted", res.Emitted),
		zap.Int("dropped_short", res.DroppedShort),
		zap.Int("dropped_remainder", res.DroppedRemainder),
	)

	// Materialize clips
	matStart := time.Now()
	ctxMat, spanMat := tracer.Start(ctx, "materialize_segments")
	uc.reportProgress(ctx, job, "materialize", 0.7, "extracting segment clips", log)
	segmentsDir := filepath.Join(uc.cfg.WorkingDir, "segments", msg.VideoName)
	entries, err := uc.materializer.Materialize(ctxMat, videoPath, segmentsDir, res.Segments)
	if err != nil {
		spanMat.End()
		return fmt.Errorf("materialize segments: %w", err)
	}
	spanMat.End()
	metrics.StageDuration.WithLabelValues("materialize").Observe(time.Since(matStart).Seconds())
	metrics.SegmentsMaterializedTotal.Add(float64(len(entries)))
	metrics.SegmentExtractFailuresTotal.Add(float64(len(res.Segments) - len(entries)))

	// Persist manifest
	uc.reportProgress(ctx, job, "persist", 0.9, "saving scene manifest", log)
	if err := uc.store.Save(msg.VideoName, entries); err != nil {
		return fmt.Errorf("save scene manifest: %w", err)
	}

	uc.uploadClips(ctx, msg.VideoName, entries, log)

	job.MarkCompleted(res.RawShots, len(entries), videoDuration)
	if err := uc.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	log.Info("video indexed",
		zap.Int("raw_shots", res.RawShots),
		zap.Int("segments", len(entries)),
		zap.Float64("duration_secs", videoDuration),
	)

	return nil
}

// uploadClips mirrors the materialized clips into object storage. A failed
// upload is logged and skipped; the local clip and manifest stay valid.
func (uc *IndexVideoUseCase) uploadClips(ctx context.Context, videoName string, entries []entity.SegmentManifestEntry, log *zap.Logger) {
	for _, entry := range entries {
		f, err := os.Open(entry.FilePath)
		if err != nil {
			log.Warn("clip missing for upload", zap.String("path", entry.FilePath), zap.Error(err))
			continue
		}
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			log.Warn("clip stat failed", zap.String("path", entry.FilePath), zap.Error(err))
			continue
		}
		key := videoName + "/" + filepath.Base(entry.FilePath)
		if err := uc.storage.UploadClip(ctx, key, f, stat.Size()); err != nil {
			log.Warn("clip upload failed", zap.String("key", key), zap.Error(err))
		}
		f.Close()
	}
}

func (uc *IndexVideoUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoIndexingMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) {
	log.Error("indexing failed", zap.String("error", errMsg))

	job.MarkFailed(errMsg)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to FAILED", zap.Error(err))
	}

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)
	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoName, errMsg)
	}
}

func (uc *IndexVideoUseCase) reportProgress(ctx context.Context, job *entity.Job, stage string, fraction float64, message string, log *zap.Logger) {
	job.SetProgress(stage, fraction, message)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Warn("failed to persist progress", zap.String("stage", stage), zap.Error(err))
	}
	uc.publishStatus(ctx, job, log)
}

func (uc *IndexVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.IndexStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		VideoName:     job.VideoName,
		Status:        job.Status,
		Stage:         job.Stage,
		Progress:      job.Progress,
		Message:       job.Message,
		ShotCount:     job.ShotCount,
		SegmentCount:  job.SegmentCount,
		VideoDuration: job.VideoDuration,
		ErrorMessage:  job.ErrorMessage,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.statusPub.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
