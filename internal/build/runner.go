package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/store"
)

// Recorder receives job lifecycle measurements.
type Recorder interface {
	RecordJobCreated(ctx context.Context, profile string)
	RecordJobCompleted(ctx context.Context, profile string, duration time.Duration)
	RecordJobFailed(ctx context.Context, profile, errorType string, duration time.Duration)
	RecordSlicingFallback(ctx context.Context, profile string)
}

type nopRecorder struct{}

func (nopRecorder) RecordJobCreated(context.Context, string) {}
func (nopRecorder) RecordJobCompleted(context.Context, string, time.Duration) {}
func (nopRecorder) RecordJobFailed(context.Context, string, string, time.Duration) {}
func (nopRecorder) RecordSlicingFallback(context.Context, string) {}

var errJobGone = errors.New("build job no longer exists")

// jobs applies whole-record job and session transitions through the store.
type jobs struct {
	store    store.Store
	baseURL  string
	recorder Recorder
	logger   *zap.Logger
}

func (j *jobs) update(ctx context.Context, id string, mutate func(*models.BuildJob)) (*models.BuildJob, error) {
	job, err := j.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", errJobGone, err)
		}
		return nil, err
	}
	mutate(job)
	if err := j.store.PutJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (j *jobs) setSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) {
	session, err := j.store.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			j.logger.Error("failed to load session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}
	session.Status = status
	if err := j.store.PutSession(ctx, session); err != nil {
		j.logger.Error("failed to save session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (j *jobs) complete(ctx context.Context, id string, out Outcome, started time.Time) {
	job, err := j.update(ctx, id, func(job *models.BuildJob) {
		job.Status = models.BuildCompleted
		job.Stage = StagePackaging
		job.Error = ""
		job.FallbackReason = out.FallbackReason
		job.MeshPath = out.MeshPath
		job.PackagePath = out.PackagePath
		job.ReportPath = out.ReportPath
		SetFileURLs(job, j.baseURL, out.PackagePath != "")
	})
	if err != nil {
		j.fail(ctx, id, "", err, started)
		return
	}
	if out.Fallback() {
		j.recorder.RecordSlicingFallback(ctx, job.MachineProfile)
	}
	j.recorder.RecordJobCompleted(ctx, job.MachineProfile, time.Since(started))
	j.setSessionStatus(ctx, job.SessionID, models.SessionCompleted)
	j.logger.Info("build completed",
		zap.String("job_id", id),
		zap.Bool("fallback", out.Fallback()),
		zap.Duration("duration", time.Since(started)))
}

func (j *jobs) fail(ctx context.Context, id, sessionID string, cause error, started time.Time) {
	j.logger.Error("build failed", zap.String("job_id", id), zap.Error(cause))

	job, err := j.update(ctx, id, func(job *models.BuildJob) {
		job.Status = models.BuildFailed
		job.Error = cause.Error()
	})
	if err == nil {
		sessionID = job.SessionID
		j.recorder.RecordJobFailed(ctx, job.MachineProfile, errorType(cause), time.Since(started))
	}
	if sessionID != "" {
		j.setSessionStatus(ctx, sessionID, models.SessionFailed)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, errJobGone):
		return "expired"
	default:
		return "pipeline"
	}
}

// RunnerConfig configures where artifacts go and how URLs are built.
type RunnerConfig struct {
	ArtifactsDir  string
	PublicBaseURL string
}

// Runner executes builds in-process.
type Runner struct {
	jobs
	pipeline *Pipeline
	cfg      RunnerConfig
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(st store.Store, pipeline *Pipeline, cfg RunnerConfig, recorder Recorder, logger *zap.Logger) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{
		jobs: jobs{
			store:    st,
			baseURL:  cfg.PublicBaseURL,
			recorder: recorder,
			logger:   logger.With(zap.String("component", "build-runner")),
		},
		pipeline: pipeline,
		cfg:      cfg,
	}
}

// Run drives job through every stage using the session snapshot taken at
// build start. The outcome is written to the store; Run itself never fails.
func (r *Runner) Run(ctx context.Context, job *models.BuildJob, session *models.Session) {
	ctx, span := tracer.Start(ctx, "build.run")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID), attribute.String("machine_profile", job.MachineProfile))

	started := time.Now()
	_, err := r.update(ctx, job.ID, func(j *models.BuildJob) {
		j.Status = models.BuildRunning
		j.Stage = StageUnderstanding
	})
	if err != nil {
		r.fail(ctx, job.ID, session.ID, err, started)
		return
	}

	if session.Specification == nil {
		r.fail(ctx, job.ID, session.ID, errors.New("session has no specification"), started)
		return
	}
	spec := session.Specification.Clone()
	spec.MachineProfile = job.MachineProfile

	out, err := r.pipeline.Execute(ctx, Input{
		JobID:          job.ID,
		SessionID:      session.ID,
		Specification:  spec,
		MachineProfile: job.MachineProfile,
		Dir:            filepath.Join(r.cfg.ArtifactsDir, job.ID),
		Adjustments:    session.Adjustments,
	}, func(stage string) error {
		r.logger.Info("build stage", zap.String("job_id", job.ID), zap.String("stage", stage))
		_, err := r.update(ctx, job.ID, func(j *models.BuildJob) { j.Stage = stage })
		return err
	})
	if err != nil {
		span.RecordError(err)
		r.fail(ctx, job.ID, session.ID, err, started)
		return
	}
	r.complete(ctx, job.ID, out, started)
}

// Dispatcher starts a build detached from the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.BuildJob, session *models.Session) error
	// Wait blocks until every dispatched build has finished or been handed off.
	Wait()
}

// LocalDispatcher runs builds on goroutines in this process.
type LocalDispatcher struct {
	runner *Runner
	wg     sync.WaitGroup
}

// NewLocalDispatcher creates a dispatcher backed by runner.
func NewLocalDispatcher(runner *Runner) *LocalDispatcher {
	return &LocalDispatcher{runner: runner}
}

// Dispatch implements Dispatcher. The build keeps running after ctx is done.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job *models.BuildJob, session *models.Session) error {
	d.runner.recorder.RecordJobCreated(ctx, job.MachineProfile)
	job, session = job.Clone(), session.Clone()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runner.Run(context.WithoutCancel(ctx), job, session)
	}()
	return nil
}

// Wait implements Dispatcher.
func (d *LocalDispatcher) Wait() { d.wg.Wait() }
