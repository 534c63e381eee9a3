package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

const slicingGrace = 5 * time.Second

var errNoSlicer = errors.New("no slicing engine configured")

var tracer = otel.Tracer("build")

// Pipeline runs mesh export, validation, slicing and report emission for one
// job. Each step is bounded by its own timeout.
type Pipeline struct {
	Compiler          GeometryCompiler
	Slicer            Slicer
	MinMeshBytes      int64
	CADTimeout        time.Duration
	ValidationTimeout time.Duration
	SlicingTimeout    time.Duration
	SlicingAttempts   int
	Logger            *zap.Logger
}

// Input is everything the pipeline needs for one job.
type Input struct {
	JobID          string
	SessionID      string
	Specification  models.Specification
	MachineProfile string
	Dir            string
	Adjustments    []models.Adjustment
}

// Outcome records the artifacts a successful run produced.
type Outcome struct {
	MeshPath       string
	PackagePath    string
	ReportPath     string
	MeshBytes      int64
	Engine         string
	FallbackReason string
}

// Fallback reports whether the package is a placeholder.
func (o Outcome) Fallback() bool { return o.FallbackReason != "" }

// Execute runs the pipeline. advance is called with each stage label before
// the stage starts; an error from advance aborts the run.
func (p *Pipeline) Execute(ctx context.Context, in Input, advance func(stage string) error) (Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("job_id", in.JobID))

	out := Outcome{
		MeshPath:   filepath.Join(in.Dir, models.FileMesh),
		ReportPath: filepath.Join(in.Dir, models.FileReport),
	}
	packagePath := filepath.Join(in.Dir, models.FilePackage)
	if err := os.MkdirAll(in.Dir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := advance(StageGeometry); err != nil {
		return Outcome{}, err
	}
	err := p.step(ctx, StageGeometry, p.CADTimeout, func(ctx context.Context) error {
		return p.Compiler.Compile(ctx, in.Specification, out.MeshPath)
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := advance(StageValidation); err != nil {
		return Outcome{}, err
	}
	err = p.step(ctx, StageValidation, p.ValidationTimeout, func(context.Context) error {
		size, err := ValidateMesh(out.MeshPath, p.MinMeshBytes)
		out.MeshBytes = size
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := advance(StageSlicing); err != nil {
		return Outcome{}, err
	}
	engine, sliceErr := p.slice(ctx, in, out.MeshPath, packagePath, logger)
	if sliceErr != nil {
		out.FallbackReason = sliceErr.Error()
		out.Engine = EnginePlaceholder
		logger.Warn("slicing failed, writing placeholder package", zap.Error(sliceErr))
		if err := WritePlaceholderPackage(packagePath, out.MeshPath); err != nil {
			return Outcome{}, err
		}
	} else {
		out.Engine = engine
	}
	if _, err := os.Stat(packagePath); err == nil {
		out.PackagePath = packagePath
	}

	if err := advance(StagePackaging); err != nil {
		return Outcome{}, err
	}
	report := Report{
		JobID:          in.JobID,
		SessionID:      in.SessionID,
		MachineProfile: in.MachineProfile,
		Status:         models.BuildCompleted,
		MeshBytes:      out.MeshBytes,
		Slicing: ReportSlicing{
			Engine: out.Engine,
			Notes:  reportNotes,
		},
		Adjustments: in.Adjustments,
	}
	if out.Fallback() {
		reason := out.FallbackReason
		report.Slicing.FallbackReason = &reason
	}
	if err := WriteReport(out.ReportPath, report); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (p *Pipeline) slice(ctx context.Context, in Input, meshPath, packagePath string, logger *zap.Logger) (string, error) {
	if p.Slicer == nil {
		return "", errNoSlicer
	}
	attempts := max(p.SlicingAttempts, 1)
	outer := p.SlicingTimeout
	if outer > 0 {
		outer += slicingGrace
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var result SliceResult
		lastErr = p.step(ctx, StageSlicing, outer, func(ctx context.Context) error {
			var err error
			result, err = p.Slicer.Slice(ctx, meshPath, packagePath, in.MachineProfile)
			return err
		})
		if lastErr == nil {
			return result.Engine, nil
		}
		logger.Info("slicing attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return "", lastErr
}

func (p *Pipeline) step(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "build.stage")
	defer span.End()
	span.SetAttributes(attribute.String("stage", stage))

	if err := withTimeout(ctx, stage, timeout, fn); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
