package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/deeds-tracker/internal/archive"
	"github.com/joseph-ayodele/deeds-tracker/internal/async"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/export"
	"github.com/joseph-ayodele/deeds-tracker/internal/ingest"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
	"github.com/joseph-ayodele/deeds-tracker/internal/ocr"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
	"github.com/joseph-ayodele/deeds-tracker/internal/server"
)

const healthProbeInterval = 10 * time.Second

func main() {
	env := common.GetEnv()
	cfg, err := common.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deedsd: load config: %v\n", err)
		os.Exit(2)
	}
	logger, err := common.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deedsd: logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("deedsd.exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	drv, pool, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer server.CloseDB(drv, pool, logger)
	repo := repository.NewTransactionRepository(drv, logger)

	gen, closeGen, err := buildGenerator(ctx, cfg, logger)
	defer closeGen()
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if cfg.Archive.Enabled {
		arch, err := archive.NewS3Archiver(ctx, archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Prefix:    cfg.Archive.Prefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, pipeline.WithArchiver(arch))
		logger.Info("archive.enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	proc, err := pipeline.NewProcessor(pipeline.Config{
		DefaultProfile: cfg.Pipeline.Profile,
		ChunkSize:      cfg.Pipeline.ChunkSize,
		ChunkOverlap:   cfg.Pipeline.ChunkOverlap,
		Parallelism:    cfg.Pipeline.Parallelism,
		ProcessTimeout: cfg.Pipeline.ProcessTimeout,
	}, ocr.NewExtractor(ocr.Config{}, logger), gen, repo, cfg.Pipeline.Profiles, logger, opts...)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
	)

	api := server.New(server.Config{
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		Async:          cfg.Pipeline.Async,
	}, proc, queue, repo, export.NewService(repo, logger), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http.listen", zap.String("addr", srv.Addr), zap.Strings("profiles", proc.Profiles()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	ingestCtx, stopIngest := context.WithCancel(ctx)
	defer stopIngest()
	ingestDone := make(chan struct{})
	if cfg.Ingest.Enabled {
		in := ingest.NewIngestor(queue, ingest.Config{
			Profile:  cfg.Ingest.Profile,
			MaxBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		}, logger)
		go func() {
			defer close(ingestDone)
			err := in.Watch(ingestCtx, ingest.WatchConfig{
				Roots:       cfg.Ingest.Dirs,
				InitialScan: cfg.Ingest.InitialScan,
				SkipHidden:  cfg.Ingest.SkipHidden,
				Debounce:    cfg.Ingest.Debounce,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingest.watch.failed", zap.Error(err))
			}
		}()
	} else {
		close(ingestDone)
	}

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs, hs := server.NewGRPCServer()
		grpcServer = gs
		go server.WatchHealth(ctx, hs, repo, healthProbeInterval, logger)
		go func() {
			logger.Info("grpc.listen", zap.String("addr", cfg.GRPC.Addr))
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("deedsd.shutdown.signal")
	case runErr = <-errCh:
		logger.Error("deedsd.server.failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http.shutdown.failed", zap.Error(err))
	}
	stopIngest()
	<-ingestDone
	queue.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("deedsd.stopped")
	return runErr
}
