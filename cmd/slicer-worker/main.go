package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/build"
	"github.com/bizmatters/maker-orchestrator/internal/config"
	"github.com/bizmatters/maker-orchestrator/internal/logging"
	"github.com/bizmatters/maker-orchestrator/internal/worker"
)

type flags struct {
	redisURL   string
	queue      string
	profileDir string
	once       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "slicer-worker",
		Short:        "Consume build jobs from Redis and run the slicing pipeline",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.redisURL, "redis-url", "", "Redis URL (defaults to REDIS_URL)")
	cmd.Flags().StringVar(&f.queue, "queue", "", "queue list key (defaults to WORKER_QUEUE)")
	cmd.Flags().StringVar(&f.profileDir, "profile-dir", "", "slicer profile directory (defaults to PROFILE_DIR)")
	cmd.Flags().BoolVar(&f.once, "once", false, "process at most one job and exit")
	return cmd
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if f.redisURL != "" {
		cfg.RedisURL = f.redisURL
	}
	if f.queue != "" {
		cfg.WorkerQueue = f.queue
	}
	if f.profileDir != "" {
		cfg.ProfileDir = f.profileDir
	}
	if cfg.RedisURL == "" {
		return errors.New("a Redis URL is required (--redis-url or REDIS_URL)")
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	pipeline := &build.Pipeline{
		Compiler:          build.NewCompiler(cfg.GeometryCommand, logger),
		MinMeshBytes:      cfg.MinMeshBytes,
		CADTimeout:        cfg.CADTimeout,
		ValidationTimeout: cfg.ValidationTimeout,
		SlicingTimeout:    cfg.SlicingTimeout,
		// one attempt; the API watcher bounds the whole job
		SlicingAttempts: 1,
		Logger:          logger,
	}
	if catalog, err := build.LoadProfileCatalog(cfg.ProfileDir); err != nil {
		logger.Warn("slicer profiles unavailable; packages will be placeholders",
			zap.String("profile_dir", cfg.ProfileDir), zap.Error(err))
	} else {
		pipeline.Slicer = &build.BambuSlicer{Binary: cfg.SlicerBinary, Catalog: catalog, Timeout: cfg.SlicingTimeout}
	}

	w := worker.New(client, pipeline, worker.Config{
		Queue:        cfg.WorkerQueue,
		ResultPrefix: cfg.WorkerResultPrefix,
		DeadLetter:   cfg.WorkerDeadLetter,
	}, logger)

	logger.Info("slicer worker started", zap.String("queue", cfg.WorkerQueue))
	if f.once {
		_, err := w.Next(ctx)
		return err
	}
	return w.Run(ctx)
}
