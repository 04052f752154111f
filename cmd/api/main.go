package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/videorag/videorag-indexing-service/internal/api"
	"github.com/videorag/videorag-indexing-service/internal/infra/config"
	"github.com/videorag/videorag-indexing-service/internal/infra/metrics"
	miniostorage "github.com/videorag/videorag-indexing-service/internal/infra/minio"
	"github.com/videorag/videorag-indexing-service/internal/infra/postgres"
	"github.com/videorag/videorag-indexing-service/internal/infra/rabbitmq"
	"github.com/videorag/videorag-indexing-service/internal/infra/scenestore"
	"github.com/videorag/videorag-indexing-service/internal/infra/tracing"
	"github.com/videorag/videorag-indexing-service/internal/infra/transnet"
	"github.com/videorag/videorag-indexing-service/internal/infra/weights"
	"github.com/videorag/videorag-indexing-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting videorag-indexing-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "videorag-indexing-api")
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
	fatalOnErr(err, "connect to rabbitmq")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	indexPub := rabbitmq.NewIndexPublisher(pub)

	// Adapters
	repo := postgres.NewJobRepository(pool)
	store := scenestore.NewFileStore(cfg.WorkingDir, log)
	weightsProvider := weights.NewProvider(cfg.WeightsDir, cfg.WeightsBaseURL, log)

	server := api.NewServer(
		repo, storage, indexPub, store, weightsProvider, log,
		api.ServerConfig{
			MaxUploadBytes:        cfg.MaxUploadBytes,
			WeightsFiles:          []string{transnet.DefaultWeightsName},
			DefaultMinDurationSec: cfg.SceneMinDuration,
			DefaultMaxDurationSec: cfg.SceneMaxDuration,
		},
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go func() {
		log.Info("videorag-indexing-api listening", zap.Int("port", cfg.APIPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("videorag-indexing-api stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
