// Package worker consumes build payloads from the Redis queue and runs them
// through the build pipeline outside the API process.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/build"
	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// Config names the queue keys the worker uses.
type Config struct {
	Queue        string
	ResultPrefix string
	DeadLetter   string
	BlockTimeout time.Duration
}

// Worker pops payloads and writes one result per job.
type Worker struct {
	client   *redis.Client
	pipeline *build.Pipeline
	cfg      Config
	logger   *zap.Logger
}

// deadLetter is what lands on the dead-letter list.
type deadLetter struct {
	Payload string    `json:"payload"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// New creates a worker.
func New(client *redis.Client, pipeline *build.Pipeline, cfg Config, logger *zap.Logger) *Worker {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &Worker{
		client:   client,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "slicer-worker")),
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.String("queue", w.cfg.Queue))
	for {
		if _, err := w.Next(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return nil
			}
			w.logger.Error("failed to read queue", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Next waits up to BlockTimeout for one payload and processes it. It reports
// whether a payload was handled.
func (w *Worker) Next(ctx context.Context) (bool, error) {
	items, err := w.client.BRPop(ctx, w.cfg.BlockTimeout, w.cfg.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop build payload: %w", err)
	}
	w.Process(ctx, items[1])
	return true, nil
}

// Process runs one raw payload. Failures are reported through the result hash
// when the job id is known and always through the dead-letter list.
func (w *Worker) Process(ctx context.Context, raw string) {
	var payload build.QueuePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		w.bury(ctx, raw, fmt.Errorf("malformed payload: %w", err))
		return
	}
	if payload.JobID == "" || payload.ArtifactDir == "" {
		w.bury(ctx, raw, errors.New("payload is missing job_id or artifact_dir"))
		return
	}

	logger := w.logger.With(zap.String("job_id", payload.JobID))
	logger.Info("build picked up", zap.String("machine_profile", payload.MachineProfile))

	out, err := w.pipeline.Execute(ctx, build.Input{
		JobID:          payload.JobID,
		SessionID:      payload.SessionID,
		Specification:  payload.Specification,
		MachineProfile: payload.MachineProfile,
		Dir:            payload.ArtifactDir,
		Adjustments:    payload.Adjustments,
	}, func(stage string) error {
		logger.Info("build stage", zap.String("stage", stage))
		if err := w.client.HSet(ctx, w.cfg.ResultPrefix+payload.JobID, build.StageField, stage).Err(); err != nil {
			logger.Warn("failed to publish stage", zap.String("stage", stage), zap.Error(err))
		}
		return nil
	})

	result := build.WorkerResult{JobID: payload.JobID, Status: models.BuildCompleted}
	if err != nil {
		result.Status = models.BuildFailed
		result.Error = err.Error()
	} else {
		result.MeshPath = out.MeshPath
		result.PackagePath = out.PackagePath
		result.ReportPath = out.ReportPath
		result.FallbackReason = out.FallbackReason
	}
	if werr := w.report(ctx, result); werr != nil {
		logger.Error("failed to write result", zap.Error(werr))
	}
	if err != nil {
		w.bury(ctx, raw, err)
		return
	}
	logger.Info("build finished", zap.Bool("fallback", out.Fallback()))
}

func (w *Worker) report(ctx context.Context, result build.WorkerResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := w.cfg.ResultPrefix + result.JobID
	if err := w.client.HSet(ctx, key, build.ResultField, data).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

func (w *Worker) bury(ctx context.Context, raw string, cause error) {
	w.logger.Warn("payload moved to dead-letter list", zap.Error(cause))
	if w.cfg.DeadLetter == "" {
		return
	}
	data, err := json.Marshal(deadLetter{Payload: raw, Error: cause.Error(), At: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := w.client.LPush(ctx, w.cfg.DeadLetter, data).Err(); err != nil {
		w.logger.Error("failed to write dead-letter entry", zap.Error(err))
	}
}
