package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/store"
)

// ResultField is the hash field the worker writes its result under.
const ResultField = "result"

// StageField holds the worker's current stage while a build is in flight.
const StageField = "stage"

// ErrWorkerTimeout is recorded on jobs whose worker never reported back.
var ErrWorkerTimeout = errors.New("Worker timeout: no completion result was reported.")

// QueuePayload is one job handed to the external worker.
type QueuePayload struct {
	JobID          string               `json:"job_id"`
	SessionID      string               `json:"session_id"`
	Specification  models.Specification `json:"specification"`
	MachineProfile string               `json:"machine_profile"`
	ArtifactDir    string               `json:"artifact_dir"`
	Adjustments    []models.Adjustment  `json:"adjustments,omitempty"`
}

// WorkerResult is what the worker reports for a payload.
type WorkerResult struct {
	JobID          string             `json:"job_id"`
	Status         models.BuildStatus `json:"status"`
	Error          string             `json:"error,omitempty"`
	MeshPath       string             `json:"mesh_path,omitempty"`
	PackagePath    string             `json:"package_path,omitempty"`
	ReportPath     string             `json:"report_path,omitempty"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
}

// Outcome converts a completed result into a pipeline outcome.
func (r WorkerResult) Outcome() Outcome {
	return Outcome{
		MeshPath:       r.MeshPath,
		PackagePath:    r.PackagePath,
		ReportPath:     r.ReportPath,
		FallbackReason: r.FallbackReason,
	}
}

// QueueConfig configures the external worker protocol.
type QueueConfig struct {
	Queue         string
	ResultPrefix  string
	PollInterval  time.Duration
	Timeout       time.Duration
	ArtifactsDir  string
	PublicBaseURL string
}

// ResultKey returns the hash key a job's result is written to.
func (c QueueConfig) ResultKey(jobID string) string {
	return c.ResultPrefix + jobID
}

// QueueDispatcher hands builds to the external worker and watches for results.
type QueueDispatcher struct {
	jobs
	client *redis.Client
	cfg    QueueConfig
	wg     sync.WaitGroup
}

// NewQueueDispatcher creates a dispatcher on client. recorder may be nil.
func NewQueueDispatcher(client *redis.Client, st store.Store, cfg QueueConfig, recorder Recorder, logger *zap.Logger) *QueueDispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 150 * time.Second
	}
	return &QueueDispatcher{
		jobs: jobs{
			store:    st,
			baseURL:  cfg.PublicBaseURL,
			recorder: recorder,
			logger:   logger.With(zap.String("component", "build-queue")),
		},
		client: client,
		cfg:    cfg,
	}
}

// Dispatch implements Dispatcher. The payload is pushed before Dispatch
// returns; the watcher keeps running after ctx is done.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job *models.BuildJob, session *models.Session) error {
	if session.Specification == nil {
		return fmt.Errorf("session has no specification: %w", models.ErrInvalidState)
	}
	spec := session.Specification.Clone()
	spec.MachineProfile = job.MachineProfile

	payload, err := json.Marshal(QueuePayload{
		JobID:          job.ID,
		SessionID:      session.ID,
		Specification:  spec,
		MachineProfile: job.MachineProfile,
		ArtifactDir:    filepath.Join(d.cfg.ArtifactsDir, job.ID),
		Adjustments:    session.Adjustments,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	if err := d.client.LPush(ctx, d.cfg.Queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue build: %w", err)
	}
	d.recorder.RecordJobCreated(ctx, job.MachineProfile)
	d.logger.Info("build enqueued", zap.String("job_id", job.ID), zap.String("queue", d.cfg.Queue))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.watch(context.WithoutCancel(ctx), job.ID, session.ID)
	}()
	return nil
}

// Wait implements Dispatcher.
func (d *QueueDispatcher) Wait() { d.wg.Wait() }

func (d *QueueDispatcher) watch(ctx context.Context, jobID, sessionID string) {
	started := time.Now()
	key := d.cfg.ResultKey(jobID)
	deadline := time.NewTimer(d.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	lastStage := ""
	for {
		fields, err := d.client.HMGet(ctx, key, ResultField, StageField).Result()
		if err != nil {
			d.logger.Warn("failed to poll worker result", zap.String("job_id", jobID), zap.Error(err))
		} else {
			if raw, ok := fields[0].(string); ok {
				d.apply(ctx, jobID, sessionID, raw, started)
				if err := d.client.Del(ctx, key).Err(); err != nil {
					d.logger.Warn("failed to delete worker result", zap.String("job_id", jobID), zap.Error(err))
				}
				return
			}
			if stage, ok := fields[1].(string); ok && stage != "" && stage != lastStage {
				lastStage = stage
				if _, err := d.update(ctx, jobID, func(j *models.BuildJob) {
					j.Status = models.BuildRunning
					j.Stage = stage
				}); err != nil {
					d.logger.Warn("failed to record worker stage", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}

		select {
		case <-deadline.C:
			d.fail(ctx, jobID, sessionID, ErrWorkerTimeout, started)
			return
		case <-ticker.C:
		}
	}
}

func (d *QueueDispatcher) apply(ctx context.Context, jobID, sessionID, raw string, started time.Time) {
	var result WorkerResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		d.fail(ctx, jobID, sessionID, fmt.Errorf("failed to decode worker result: %w", err), started)
		return
	}
	if result.Status != models.BuildCompleted {
		reason := result.Error
		if reason == "" {
			reason = "worker reported a failed build"
		}
		d.fail(ctx, jobID, sessionID, errors.New(reason), started)
		return
	}
	d.complete(ctx, jobID, result.Outcome(), started)
}
