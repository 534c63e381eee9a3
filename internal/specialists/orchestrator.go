// Package specialists runs the six independent evaluators over a seed and
// merges their findings into one specification.
package specialists

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/seed"
)

// Request is one best-effort refinement call on behalf of an evaluator.
type Request struct {
	Agent  string         `json:"agent"`
	Prompt string         `json:"prompt"`
	Seed   seed.Seed      `json:"seed"`
	Schema map[string]any `json:"expected_schema"`
}

// Oracle refines evaluator baselines. Suggest reports false for every kind of
// failure; it never returns an error.
type Oracle interface {
	Suggest(ctx context.Context, req Request) (map[string]any, bool)
}

// Orchestrator fans a seed out to the six evaluators and joins their findings.
type Orchestrator struct {
	oracle Oracle
	logger *zap.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an orchestrator. oracle may be nil, in which case
// every evaluator returns its deterministic baseline.
func NewOrchestrator(oracle Oracle, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		oracle: oracle,
		logger: logger.With(zap.String("component", "specialists")),
		tracer: otel.Tracer("specialists"),
	}
}

// Evaluate runs all six evaluators concurrently and waits for every one of
// them, or for ctx to be done. On ctx expiry the whole pass is abandoned and
// models.ErrTimeout is returned.
func (o *Orchestrator) Evaluate(ctx context.Context, prompt string, s seed.Seed) (Findings, error) {
	ctx, span := o.tracer.Start(ctx, "specialists.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("seed.object_class", s.ObjectClass),
		attribute.Bool("oracle.enabled", o.oracle != nil),
	)

	var (
		intent            IntentFinding
		geometry          GeometryFinding
		manufacturability ManufacturabilityFinding
		questions         QuestionFinding
		profile           ProfileFinding
		safety            SafetyFinding
	)

	g, gctx := errgroup.WithContext(ctx)
	o.run(g, gctx, AgentIntent, func(ctx context.Context) {
		intent = evaluateIntent(ctx, o.oracle, prompt, s)
	})
	o.run(g, gctx, AgentGeometry, func(ctx context.Context) {
		geometry = evaluateGeometry(ctx, o.oracle, prompt, s)
	})
	o.run(g, gctx, AgentManufacturability, func(ctx context.Context) {
		manufacturability = evaluateManufacturability(ctx, o.oracle, prompt, s)
	})
	o.run(g, gctx, AgentQuestion, func(ctx context.Context) {
		questions = evaluateQuestions(ctx, o.oracle, prompt, s)
	})
	o.run(g, gctx, AgentSlicing, func(ctx context.Context) {
		profile = evaluateProfile(ctx, o.oracle, prompt, s)
	})
	o.run(g, gctx, AgentSafety, func(ctx context.Context) {
		safety = evaluateSafety(ctx, o.oracle, prompt, s)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		o.logger.Warn("specialist evaluation abandoned", zap.Error(ctx.Err()))
		return Findings{}, fmt.Errorf("specialist evaluation: %w", models.ErrTimeout)
	case err := <-done:
		if err != nil {
			return Findings{}, fmt.Errorf("failed to evaluate specialists: %w", err)
		}
	}

	return Findings{
		Intent:            intent,
		Geometry:          geometry,
		Manufacturability: manufacturability,
		Questions:         questions,
		Profile:           profile,
		Safety:            safety,
	}, nil
}

func (o *Orchestrator) run(g *errgroup.Group, ctx context.Context, agent string, fn func(context.Context)) {
	g.Go(func() error {
		ctx, span := o.tracer.Start(ctx, "specialists."+agent)
		defer span.End()
		fn(ctx)
		return nil
	})
}
