package orchestration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/auth"
	"github.com/bizmatters/maker-orchestrator/internal/build"
	"github.com/bizmatters/maker-orchestrator/internal/clarify"
	"github.com/bizmatters/maker-orchestrator/internal/constraints"
	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/seed"
	"github.com/bizmatters/maker-orchestrator/internal/specialists"
	"github.com/bizmatters/maker-orchestrator/internal/store"
)

const patchSummary = "Dimensions updated and optimised for printability."

// Evaluator runs the specialist pass for one prompt.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, s seed.Seed) (specialists.Findings, error)
}

// Recorder receives session-level measurements.
type Recorder interface {
	RecordSessionCreated(ctx context.Context, status string)
	RecordEvaluation(ctx context.Context, duration time.Duration, timedOut bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordSessionCreated(context.Context, string) {}
func (nopRecorder) RecordEvaluation(context.Context, time.Duration, bool) {}

// Config bounds the session lifecycle.
type Config struct {
	AgentTimeout   time.Duration
	Retention      time.Duration
	MaxDimensionMM float64
	ArtifactsDir   string
}

// Service handles session and build orchestration
type Service struct {
	store      store.Store
	evaluator  Evaluator
	dispatcher build.Dispatcher
	issuer     build.TokenIssuer
	cleaner    build.ArtifactCleaner
	cfg        Config
	recorder   Recorder
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new orchestration service
func NewService(st store.Store, evaluator Evaluator, dispatcher build.Dispatcher, issuer build.TokenIssuer, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		issuer:     issuer,
		cleaner:    build.ArtifactCleaner{Root: cfg.ArtifactsDir},
		cfg:        cfg,
		recorder:   nopRecorder{},
		logger:     logger.With(zap.String("component", "orchestration")),
		tracer:     otel.Tracer("orchestration"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// orchestration is the outcome of one evaluation pass.
type orchestration struct {
	spec        models.Specification
	questions   []models.ClarificationQuestion
	adjustments []models.Adjustment
	summary     string
}

// orchestrate runs seed extraction, the specialist pass, answer application,
// constraint enforcement and question resolution. base, when non-nil, replaces
// the merged findings as the starting specification.
func (s *Service) orchestrate(ctx context.Context, prompt string, base *models.Specification, answers map[string]any) (orchestration, error) {
	ctx, span := s.tracer.Start(ctx, "orchestration.orchestrate")
	defer span.End()

	sd := seed.Extract(prompt)

	evalCtx := ctx
	if s.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, s.cfg.AgentTimeout)
		defer cancel()
	}
	started := s.now()
	findings, err := s.evaluator.Evaluate(evalCtx, prompt, sd)
	timedOut := errors.Is(err, models.ErrTimeout) || errors.Is(evalCtx.Err(), context.DeadlineExceeded)
	s.recorder.RecordEvaluation(ctx, s.now().Sub(started), timedOut)
	if err != nil {
		span.RecordError(err)
		if timedOut && !errors.Is(err, models.ErrTimeout) {
			err = fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}
		return orchestration{}, err
	}

	spec := findings.Specification()
	if base != nil {
		spec = base.Clone()
	}
	spec = clarify.ApplyAnswers(spec, answers)

	limits := constraints.DefaultLimits(s.cfg.MaxDimensionMM).WithMinimums(findings.Manufacturability.Minimums)
	spec, adjustments := constraints.Enforce(spec, limits)

	questions := clarify.Resolve(clarify.Input{
		Seed:             sd,
		Specification:    spec,
		Answers:          answers,
		Candidates:       findings.Questions.Questions,
		SafetyConfidence: findings.Safety.Confidence,
	})
	span.SetAttributes(attribute.Int("questions", len(questions)), attribute.Int("adjustments", len(adjustments)))

	return orchestration{
		spec:        spec,
		questions:   questions,
		adjustments: adjustments,
		summary:     Summary(spec, questions),
	}, nil
}

// Summary describes how the request was interpreted.
func Summary(spec models.Specification, questions []models.ClarificationQuestion) string {
	base := fmt.Sprintf("We interpreted your request as a %s %s optimised for PLA.",
		strings.ReplaceAll(spec.Shape, "_", " "),
		strings.ReplaceAll(spec.ObjectClass, "_", " "))
	if len(questions) > 0 {
		return base + " A few details are still needed before generation."
	}
	return base + " You can refine dimensions and build now."
}

func statusFor(questions []models.ClarificationQuestion) models.SessionStatus {
	if len(questions) > 0 {
		return models.SessionQuestionsReady
	}
	return models.SessionReadyToBuild
}

// CreateSession evaluates prompt and stores a new session.
func (s *Service) CreateSession(ctx context.Context, prompt string) (*models.Session, error) {
	result, err := s.orchestrate(ctx, prompt, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse request: %w", err)
	}

	now := s.now().UTC()
	spec := result.spec
	session := &models.Session{
		ID:            uuid.NewString(),
		Status:        statusFor(result.questions),
		Summary:       result.summary,
		Questions:     result.questions,
		Specification: &spec,
		Adjustments:   result.adjustments,
		Prompt:        prompt,
		Answers:       map[string]any{},
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.Retention),
	}
	if err := s.store.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.recorder.RecordSessionCreated(ctx, string(session.Status))
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
		zap.Int("questions", len(session.Questions)))
	return session, nil
}

// GetSession returns the current session state.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return session, nil
}

// SubmitAnswers merges answers into the session (last write wins) and re-runs
// the evaluation pass on top of the current specification.
func (s *Service) SubmitAnswers(ctx context.Context, id string, answers map[string]any) (*models.Session, error) {
	current, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateSessionTransition(current.Status, models.SessionQuestionsReady); err != nil {
		return nil, err
	}
	if err := clarify.CheckAnswers(answers); err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(current.Answers)+len(answers))
	for k, v := range current.Answers {
		merged[k] = v
	}
	for k, v := range answers {
		merged[k] = v
	}

	result, err := s.orchestrate(ctx, current.Prompt, current.Specification, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to apply answers: %w", err)
	}

	updated := current.Clone()
	spec := result.spec
	updated.Answers = merged
	updated.Summary = result.summary
	updated.Specification = &spec
	updated.Questions = result.questions
	updated.Adjustments = result.adjustments
	updated.Status = statusFor(result.questions)
	if err := s.store.PutSession(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return updated, nil
}

// PatchSpecification overwrites dimensions directly, re-runs only the
// constraint pass and forces the session to ready_to_build.
func (s *Service) PatchSpecification(ctx context.Context, id string, dimensions map[string]float64) (*models.Session, error) {
	current, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Specification == nil {
		return nil, fmt.Errorf("session has no specification yet: %w", models.ErrInvalidState)
	}
	if err := validateSessionTransition(current.Status, models.SessionReadyToBuild); err != nil {
		return nil, err
	}

	patched := current.Specification.Clone()
	for field, value := range dimensions {
		patched.DimensionsMM[field] = value
	}
	spec, adjustments := constraints.Enforce(patched, constraints.DefaultLimits(s.cfg.MaxDimensionMM))

	updated := current.Clone()
	updated.Specification = &spec
	updated.Adjustments = adjustments
	updated.Questions = []models.ClarificationQuestion{}
	updated.Status = models.SessionReadyToBuild
	updated.Summary = patchSummary
	if err := s.store.PutSession(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return updated, nil
}

// StartBuild snapshots the session's specification into a new job and hands
// it to the dispatcher. The build runs detached from ctx.
func (s *Service) StartBuild(ctx context.Context, sessionID, profile string) (*models.BuildJob, error) {
	ctx, span := s.tracer.Start(ctx, "orchestration.start_build")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID), attribute.String("machine_profile", profile))

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !models.IsMachineProfile(profile) {
		return nil, fmt.Errorf("unknown machine profile %q: %w", profile, models.ErrValidation)
	}
	if session.Specification == nil {
		return nil, fmt.Errorf("session is missing a specification: %w", models.ErrInvalidState)
	}
	if len(session.Questions) > 0 {
		return nil, fmt.Errorf("please answer clarification questions first: %w", models.ErrInvalidState)
	}
	if err := validateSessionTransition(session.Status, models.SessionBuilding); err != nil {
		return nil, err
	}

	// The job is persisted before the session moves to building, so a store
	// failure here leaves the session editable.
	job, err := build.NewJob(sessionID, profile, s.cfg.Retention, s.issuer, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.PutJob(ctx, job); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	updated := session.Clone()
	updated.Status = models.SessionBuilding
	updated.Specification.MachineProfile = profile
	if err := s.store.PutSession(ctx, updated); err != nil {
		span.RecordError(err)
		orphan := job.Clone()
		orphan.Status = models.BuildFailed
		orphan.Error = "session could not be updated"
		if jerr := s.store.PutJob(ctx, orphan); jerr != nil {
			s.logger.Error("failed to fail orphaned job", zap.String("job_id", job.ID), zap.Error(jerr))
		}
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.dispatcher.Dispatch(ctx, job, updated); err != nil {
		span.RecordError(err)
		if merr := s.markDispatchFailed(ctx, job, updated, err); merr != nil {
			s.logger.Error("failed to record dispatch failure", zap.String("job_id", job.ID), zap.Error(merr))
		}
		return nil, fmt.Errorf("failed to start build: %w", err)
	}

	s.logger.Info("build started", zap.String("job_id", job.ID), zap.String("session_id", sessionID))
	return job.Clone(), nil
}

func (s *Service) markDispatchFailed(ctx context.Context, job *models.BuildJob, session *models.Session, cause error) error {
	failed := job.Clone()
	failed.Status = models.BuildFailed
	failed.Error = cause.Error()
	if err := s.store.PutJob(ctx, failed); err != nil {
		return err
	}
	session = session.Clone()
	session.Status = models.SessionFailed
	return s.store.PutSession(ctx, session)
}

// GetBuild returns the job. An expired job has its artifacts removed and is
// reported as not found.
func (s *Service) GetBuild(ctx context.Context, jobID string) (*models.BuildJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, models.ErrExpired) && job != nil {
		if perr := s.cleaner.Purge(job); perr != nil {
			s.logger.Warn("failed to purge expired artifacts", zap.String("job_id", jobID), zap.Error(perr))
		} else {
			s.logger.Info("expired build purged", zap.String("job_id", jobID))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", jobID, err)
	}
	return job, nil
}

// OpenArtifact resolves the on-disk path of one artifact after checking the
// download token against the job's own.
func (s *Service) OpenArtifact(ctx context.Context, jobID, filename, token string) (string, error) {
	job, err := s.GetBuild(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !auth.TokensEqual(token, job.Token) {
		return "", fmt.Errorf("invalid download token: %w", models.ErrForbidden)
	}
	path, ok := job.ArtifactPath(filename)
	if !ok {
		return "", fmt.Errorf("artifact %s: %w", filename, models.ErrNotFound)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("artifact missing from storage: %w", models.ErrNotFound)
	}
	return path, nil
}

// validateSessionTransition validates session status transitions
func validateSessionTransition(current, next models.SessionStatus) error {
	editable := []models.SessionStatus{models.SessionQuestionsReady, models.SessionReadyToBuild, models.SessionBuilding}
	validTransitions := map[models.SessionStatus][]models.SessionStatus{
		models.SessionCollecting:     {models.SessionQuestionsReady, models.SessionReadyToBuild},
		models.SessionQuestionsReady: editable,
		models.SessionReadyToBuild:   editable,
		models.SessionBuilding:       {models.SessionCompleted, models.SessionFailed},
		models.SessionCompleted:      editable,
		models.SessionFailed:         editable,
	}

	allowedNext, exists := validTransitions[current]
	if !exists {
		return fmt.Errorf("invalid current status %s: %w", current, models.ErrInvalidState)
	}
	for _, allowed := range allowedNext {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition from %s to %s: %w", current, next, models.ErrInvalidState)
}
