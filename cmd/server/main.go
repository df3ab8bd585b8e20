package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/database"
	"github.com/docsight/docsight/internal/documents"
	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/internal/keywords"
	"github.com/docsight/docsight/internal/logger"
	"github.com/docsight/docsight/internal/pipeline"
	"github.com/docsight/docsight/internal/queue"
	"github.com/docsight/docsight/internal/rasterize"
	"github.com/docsight/docsight/internal/server"
	"github.com/docsight/docsight/internal/storage"
	"github.com/docsight/docsight/internal/vision"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("finalize config: %w", err)
	}

	log := logger.New(&cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	store, err := storage.New(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	documentSystem := documents.New(db, store, log, cfg.Pagination)
	imageSystem := images.New(db, store, log)
	keywordSystem := keywords.New(db, log, cfg.Pagination)

	analyzer, err := vision.New(ctx, &cfg.Vision, log)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	defer analyzer.Close()

	rasterizer := rasterize.New(store, &cfg.Rasterizer, log)

	jobQueue := queue.New(rdb, &cfg.Queue, log)
	pipe := pipeline.New(jobQueue, documentSystem, imageSystem, keywordSystem,
		store, rasterizer, analyzer, &cfg.Queue, log)

	if err := pipe.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	supervisor := pipeline.NewSupervisor(jobQueue, &cfg.Queue, log)
	supervisor.Start(ctx)

	router := server.Routes(server.Handlers{
		Documents: documents.NewHandler(documentSystem, pipe, log, cfg.Pagination, cfg.Storage.MaxUploadSizeBytes()),
		Images:    images.NewHandler(imageSystem, log),
		Keywords:  keywords.NewHandler(keywordSystem, log, cfg.Pagination),
		Pipeline:  pipeline.NewHandler(pipe, log),
	}, db, rdb, cfg, log)

	srv := server.New(&cfg.Server, cfg.ShutdownTimeoutDuration(), router, log)
	err = srv.Start(ctx)

	// HTTP is down; drain the workers before releasing shared clients.
	stop()
	jobQueue.Wait()
	supervisor.Wait()

	return err
}
