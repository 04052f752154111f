package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/infra/config"
	"github.com/videorag/videorag-indexing-service/internal/infra/email"
	"github.com/videorag/videorag-indexing-service/internal/infra/ffmpeg"
	"github.com/videorag/videorag-indexing-service/internal/infra/metrics"
	miniostorage "github.com/videorag/videorag-indexing-service/internal/infra/minio"
	"github.com/videorag/videorag-indexing-service/internal/infra/postgres"
	"github.com/videorag/videorag-indexing-service/internal/infra/rabbitmq"
	"github.com/videorag/videorag-indexing-service/internal/infra/scenestore"
	"github.com/videorag/videorag-indexing-service/internal/infra/tracing"
	"github.com/videorag/videorag-indexing-service/internal/infra/transnet"
	"github.com/videorag/videorag-indexing-service/internal/infra/weights"
	"github.com/videorag/videorag-indexing-service/internal/scene"
	"github.com/videorag/videorag-indexing-service/internal/usecase"
	"github.com/videorag/videorag-indexing-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting videorag-indexing-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "videorag-indexing-worker")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    cfg.MinIOEndpoint,
		AccessKey:   cfg.MinIOAccessKey,
		SecretKey:   cfg.MinIOSecretKey,
		UseSSL:      cfg.MinIOUseSSL,
		VideoBucket: cfg.MinIOVideoBucket,
		ClipBucket:  cfg.MinIOClipBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	preparer := ffmpeg.NewPreparer(cfg.FFmpegPath, log)
	prober := ffmpeg.NewProber(cfg.FFprobePath)
	extractor := ffmpeg.NewExtractor(cfg.FFmpegPath, log)
	weightsProvider := weights.NewProvider(cfg.WeightsDir, cfg.WeightsBaseURL, log)
	detector := transnet.NewDetector(weightsProvider, transnet.DetectorConfig{
		RunnerName: cfg.TransNetRunner,
	}, log)
	defer detector.Release()
	materializer := scene.NewMaterializer(extractor, log)
	store := scenestore.NewFileStore(cfg.WorkingDir, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewIndexVideoUseCase(
		repo, storage, preparer, prober, detector, materializer, store,
		statusPub, dlqPub, notifier,
		log,
		usecase.IndexVideoConfig{
			TempDir:            cfg.TempDir,
			WorkingDir:         cfg.WorkingDir,
			TargetFPS:          cfg.TargetFPS,
			TargetHeight:       cfg.TargetHeight,
			DefaultThreshold:   cfg.SceneThreshold,
			DefaultMinDuration: cfg.SceneMinDuration,
			DefaultMaxDuration: cfg.SceneMaxDuration,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQIndexingQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("videorag-indexing-worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("videorag-indexing-worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
