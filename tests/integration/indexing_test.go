package integration

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/infra/email"
	"github.com/videorag/videorag-indexing-service/internal/infra/ffmpeg"
	miniostorage "github.com/videorag/videorag-indexing-service/internal/infra/minio"
	"github.com/videorag/videorag-indexing-service/internal/infra/postgres"
	"github.com/videorag/videorag-indexing-service/internal/infra/rabbitmq"
	"github.com/videorag/videorag-indexing-service/internal/infra/scenestore"
	"github.com/videorag/videorag-indexing-service/internal/infra/transnet"
	"github.com/videorag/videorag-indexing-service/internal/infra/weights"
	"github.com/videorag/videorag-indexing-service/internal/scene"
	"github.com/videorag/videorag-indexing-service/internal/usecase"
	"github.com/videorag/videorag-indexing-service/pkg/logger"
)

// stubRunner pretends to be the TransNetV2 inference binary: it ignores its
// arguments and reports two fixed shots covering a 12s video.
func stubRunner(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := `#!/bin/sh
cat <<'EOF'
{"shots":[
  {"shot_id":0,"start_frame":0,"end_frame":6,"start_time":0,"end_time":6},
  {"shot_id":1,"start_frame":6,"end_frame":12,"start_time":6,"end_time":12}
]}
EOF
`
	path := filepath.Join(dir, "transnetv2-infer")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return dir
}

func TestIndexVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=12:size=320x240:rate=1 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("indexing"),
		tcpostgres.WithUsername("index_user"),
		tcpostgres.WithPassword("index_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		UseSSL:      false,
		VideoBucket: "videos",
		ClipBucket:  "clips",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "videos", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "videorag.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.indexing.dlq")

	// Setup DB pool
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Stub model: runner on PATH, weights already on disk.
	t.Setenv("PATH", stubRunner(t)+string(os.PathListSeparator)+os.Getenv("PATH"))
	weightsDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(weightsDir, transnet.DefaultWeightsName), []byte("weights"), 0o644))

	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(pool)
	preparer := ffmpeg.NewPreparer("ffmpeg", log)
	prober := ffmpeg.NewProber("ffprobe")
	extractor := ffmpeg.NewExtractor("ffmpeg", log)
	weightsProvider := weights.NewProvider(weightsDir, "http://unused.invalid", log)
	detector := transnet.NewDetector(weightsProvider, transnet.DetectorConfig{
		RunnerName: "transnetv2-infer",
	}, log)
	defer detector.Release()
	materializer := scene.NewMaterializer(extractor, log)
	workingDir := t.TempDir()
	store := scenestore.NewFileStore(workingDir, log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewIndexVideoUseCase(
		repo, storage, preparer, prober, detector, materializer, store,
		statusPub, dlqPub, notifier,
		log,
		usecase.IndexVideoConfig{
			TempDir:            t.TempDir(),
			WorkingDir:         workingDir,
			TargetFPS:          1,
			TargetHeight:       224,
			DefaultThreshold:   0.2,
			DefaultMinDuration: 5,
			DefaultMaxDuration: 12,
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.indexing",
		Exchange:    "videorag.video",
		DLQ:         "video.indexing.dlq",
		StatusQueue: "video.status",
		Prefetch:    1,
		WorkerCount: 1,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Publish indexing message
	jobID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	indexingMsg := entity.VideoIndexingMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoName: "test",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
	}
	msgBody, err := json.Marshal(indexingMsg)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"videorag.video",
		"video.indexing",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// The pipeline publishes a status message per stage; wait for a terminal one.
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("video.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.IndexStatusMessage
	deadline := time.After(2 * time.Minute)
	for !statusMsg.Status.IsTerminal() {
		select {
		case delivery := <-statusMsgs:
			require.NoError(t, json.Unmarshal(delivery.Body, &statusMsg))
		case <-deadline:
			t.Fatal("timeout waiting for terminal status message")
		}
	}

	// Assert status
	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Equal(t, 2, statusMsg.ShotCount)
	assert.Equal(t, 2, statusMsg.SegmentCount)
	assert.InDelta(t, 12.0, statusMsg.VideoDuration, 0.5)

	// Verify the scene manifest on disk
	manifest, err := store.Load("test")
	require.NoError(t, err)
	require.Len(t, manifest, 2)
	assert.Equal(t, "test_scene_0000", manifest[0].SegmentID)
	assert.Equal(t, "test_scene_0001", manifest[1].SegmentID)
	for _, entry := range manifest {
		_, err := os.Stat(entry.FilePath)
		assert.NoError(t, err, "segment clip %s should exist", entry.FilePath)
	}

	// Verify clips landed in MinIO
	clipCount := 0
	for obj := range minioClient.ListObjects(ctx, "clips", miniogo.ListObjectsOptions{
		Prefix:    "test/",
		Recursive: true,
	}) {
		require.NoError(t, obj.Err)
		clipCount++
	}
	assert.Equal(t, 2, clipCount)

	// Verify job record in database
	var dbStatus string
	var dbSegments int
	err = pool.QueryRow(ctx,
		"SELECT status, segment_count FROM indexing_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbSegments)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, 2, dbSegments)

	consumerCancel()

	t.Logf("Test passed: %d segments indexed for video %q", dbSegments, statusMsg.VideoName)
}

func TestIndexVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Start PostgreSQL
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("indexing"),
		tcpostgres.WithUsername("index_user"),
		tcpostgres.WithPassword("index_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		UseSSL:      false,
		VideoBucket: "videos",
		ClipBucket:  "clips",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logger.New("debug")
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "videorag.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.indexing.dlq")

	weightsDir := t.TempDir()
	repo := postgres.NewJobRepository(pool)
	preparer := ffmpeg.NewPreparer("ffmpeg", log)
	prober := ffmpeg.NewProber("ffprobe")
	extractor := ffmpeg.NewExtractor("ffmpeg", log)
	weightsProvider := weights.NewProvider(weightsDir, "http://unused.invalid", log)
	detector := transnet.NewDetector(weightsProvider, transnet.DetectorConfig{
		RunnerName: "transnetv2-infer",
	}, log)
	defer detector.Release()
	materializer := scene.NewMaterializer(extractor, log)
	workingDir := t.TempDir()
	store := scenestore.NewFileStore(workingDir, log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewIndexVideoUseCase(
		repo, storage, preparer, prober, detector, materializer, store,
		statusPub, dlqPub, notifier,
		log,
		usecase.IndexVideoConfig{
			TempDir:            t.TempDir(),
			WorkingDir:         workingDir,
			TargetFPS:          1,
			TargetHeight:       224,
			DefaultThreshold:   0.2,
			DefaultMinDuration: 5,
			DefaultMaxDuration: 12,
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.indexing",
		Exchange:    "videorag.video",
		DLQ:         "video.indexing.dlq",
		StatusQueue: "video.status",
		Prefetch:    1,
		WorkerCount: 1,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()
	time.Sleep(500 * time.Millisecond)

	// Publish malformed message
	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"videorag.video",
		"video.indexing",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify message landed in DLQ
	time.Sleep(2 * time.Second)

	dlqCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("video.indexing.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))

	consumerCancel()
	t.Log("Test passed: malformed message sent to DLQ")
}
