package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/bizmatters/maker-orchestrator/docs" // swagger docs
	"github.com/bizmatters/maker-orchestrator/internal/auth"
	"github.com/bizmatters/maker-orchestrator/internal/build"
	"github.com/bizmatters/maker-orchestrator/internal/config"
	"github.com/bizmatters/maker-orchestrator/internal/gateway"
	"github.com/bizmatters/maker-orchestrator/internal/logging"
	"github.com/bizmatters/maker-orchestrator/internal/metrics"
	"github.com/bizmatters/maker-orchestrator/internal/oracle"
	"github.com/bizmatters/maker-orchestrator/internal/orchestration"
	"github.com/bizmatters/maker-orchestrator/internal/specialists"
	"github.com/bizmatters/maker-orchestrator/internal/store"
	"github.com/bizmatters/maker-orchestrator/internal/telemetry"
)

// @title Maker Orchestrator API
// @version 1.0
// @description Turns free-text object descriptions into printable STL and 3MF files.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "maker-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.Init(telemetry.Config{
		ServiceName:     "maker-api",
		Environment:     cfg.Env,
		TracesExporter:  cfg.TracesExporter,
		MetricsExporter: cfg.MetricsExporter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("opening store", zap.String("backend", cfg.StoreBackend))
	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		KeyPrefix:   "maker:",
		Grace:       time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	jobMetrics, err := metrics.NewJobMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	var evaluator *specialists.Orchestrator
	if o := oracle.NewOpenAIOracle(oracle.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OracleTimeout,
	}, logger); o != nil {
		logger.Info("specialist oracle enabled", zap.String("model", cfg.OpenAIModel))
		evaluator = specialists.NewOrchestrator(o, logger)
	} else {
		evaluator = specialists.NewOrchestrator(nil, logger)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("JWT_SECRET not set; download tokens will not survive a restart")
	}
	jwtManager, err := auth.NewJWTManager(secret)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	var dispatcher build.Dispatcher
	if cfg.UseExternalWorker {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		dispatcher = build.NewQueueDispatcher(client, st, build.QueueConfig{
			Queue:         cfg.WorkerQueue,
			ResultPrefix:  cfg.WorkerResultPrefix,
			PollInterval:  cfg.WorkerPollInterval,
			Timeout:       cfg.WorkerTimeout,
			ArtifactsDir:  cfg.ArtifactsDir,
			PublicBaseURL: cfg.PublicBaseURL,
		}, jobMetrics, logger)
		logger.Info("builds dispatched to external worker", zap.String("queue", cfg.WorkerQueue))
	} else {
		runner := build.NewRunner(st, newPipeline(cfg, logger), build.RunnerConfig{
			ArtifactsDir:  cfg.ArtifactsDir,
			PublicBaseURL: cfg.PublicBaseURL,
		}, jobMetrics, logger)
		dispatcher = build.NewLocalDispatcher(runner)
	}

	service := orchestration.NewService(st, evaluator, dispatcher, jwtManager, orchestration.Config{
		AgentTimeout:   cfg.AgentTimeout,
		Retention:      cfg.Retention(),
		MaxDimensionMM: cfg.MaxDimensionMM,
		ArtifactsDir:   cfg.ArtifactsDir,
	}, logger, orchestration.WithRecorder(jobMetrics))

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	limiter := gateway.NewRateLimiter(limiterCtx, cfg.RateLimitPerMinute, logger)

	router := gateway.NewRouter(gateway.RouterConfig{
		Handler:     gateway.NewHandler(service, logger),
		JWTManager:  jwtManager,
		RateLimiter: limiter,
		Logger:      logger,
		Ready:       st.Ping,
		Metrics:     tel.MetricsHandler(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AgentTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting maker API server", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	stopLimiter()
	<-limiter.Done()
	waitForBuilds(shutdownCtx, dispatcher, logger)
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// newPipeline wires the geometry compiler and, when the profile catalog is
// present, the Bambu slicer. Without a catalog every build gets the
// placeholder package.
func newPipeline(cfg *config.Config, logger *zap.Logger) *build.Pipeline {
	p := &build.Pipeline{
		Compiler:          build.NewCompiler(cfg.GeometryCommand, logger),
		MinMeshBytes:      cfg.MinMeshBytes,
		CADTimeout:        cfg.CADTimeout,
		ValidationTimeout: cfg.ValidationTimeout,
		SlicingTimeout:    cfg.SlicingTimeout,
		SlicingAttempts:   2,
		Logger:            logger,
	}
	catalog, err := build.LoadProfileCatalog(cfg.ProfileDir)
	if err != nil {
		logger.Warn("slicer profiles unavailable; packages will be placeholders",
			zap.String("profile_dir", cfg.ProfileDir), zap.Error(err))
		return p
	}
	p.Slicer = &build.BambuSlicer{Binary: cfg.SlicerBinary, Catalog: catalog, Timeout: cfg.SlicingTimeout}
	return p
}

// waitForBuilds blocks until in-flight builds finish or ctx is done.
func waitForBuilds(ctx context.Context, dispatcher build.Dispatcher, logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("shutdown deadline reached with builds still running", zap.Error(ctx.Err()))
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
