package build

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

func execute(t *testing.T, p *Pipeline) (Outcome, []string, error) {
	t.Helper()
	var stages []string
	out, err := p.Execute(context.Background(), Input{
		JobID:          "job-1",
		SessionID:      "session-1",
		Specification:  earringSpec(),
		MachineProfile: models.ProfileA1,
		Dir:            filepath.Join(t.TempDir(), "job-1"),
		Adjustments:    []models.Adjustment{{Field: "thickness", From: 0.4, To: 1.8, Reason: "raised"}},
	}, func(stage string) error {
		stages = append(stages, stage)
		return nil
	})
	return out, stages, err
}

func TestPipeline_SlicedPackage(t *testing.T) {
	slicer := &fakeSlicer{}
	out, stages, err := execute(t, testPipeline(slicer))
	require.NoError(t, err)

	assert.Equal(t, []string{StageGeometry, StageValidation, StageSlicing, StagePackaging}, stages)
	assert.Equal(t, "fake-slicer", out.Engine)
	assert.False(t, out.Fallback())
	assert.FileExists(t, out.MeshPath)
	assert.FileExists(t, out.PackagePath)
	assert.FileExists(t, out.ReportPath)
	assert.Greater(t, out.MeshBytes, int64(200))
	assert.Equal(t, 1, slicer.calls)

	report := readReport(t, out.ReportPath)
	assert.Nil(t, report.Slicing.FallbackReason)
	assert.Len(t, report.Adjustments, 1)
}

func TestPipeline_RetriesSlicingOnce(t *testing.T) {
	slicer := &fakeSlicer{failures: 1}
	out, _, err := execute(t, testPipeline(slicer))
	require.NoError(t, err)
	assert.Equal(t, 2, slicer.calls)
	assert.False(t, out.Fallback())
}

func TestPipeline_PlaceholderAfterTwoFailures(t *testing.T) {
	slicer := &fakeSlicer{failures: 5, err: errors.New("missing profile file: A1.machine.json")}
	out, _, err := execute(t, testPipeline(slicer))
	require.NoError(t, err)

	assert.Equal(t, 2, slicer.calls)
	assert.True(t, out.Fallback())
	assert.Equal(t, EnginePlaceholder, out.Engine)
	assert.Equal(t, "missing profile file: A1.machine.json", out.FallbackReason)
	assert.FileExists(t, out.PackagePath)

	report := readReport(t, out.ReportPath)
	require.NotNil(t, report.Slicing.FallbackReason)
	assert.Equal(t, out.FallbackReason, *report.Slicing.FallbackReason)
	assert.Equal(t, EnginePlaceholder, report.Slicing.Engine)
}

func TestPipeline_NoSlicerConfigured(t *testing.T) {
	out, _, err := execute(t, testPipeline(nil))
	require.NoError(t, err)
	assert.Equal(t, errNoSlicer.Error(), out.FallbackReason)
	assert.FileExists(t, out.PackagePath)
}

func TestPipeline_FatalFailures(t *testing.T) {
	t.Run("compiler_error", func(t *testing.T) {
		p := testPipeline(&fakeSlicer{})
		p.Compiler = compilerFunc(func(context.Context, models.Specification, string) error {
			return errors.New("kernel panic in CAD")
		})
		_, stages, err := execute(t, p)
		assert.EqualError(t, err, "kernel panic in CAD")
		assert.Equal(t, []string{StageGeometry}, stages)
	})

	t.Run("mesh_too_small", func(t *testing.T) {
		p := testPipeline(&fakeSlicer{})
		p.Compiler = tinyMeshCompiler()
		_, stages, err := execute(t, p)
		assert.EqualError(t, err, "STL file appears invalid: file too small")
		assert.Equal(t, []string{StageGeometry, StageValidation}, stages)
	})

	t.Run("compiler_timeout", func(t *testing.T) {
		p := testPipeline(&fakeSlicer{})
		p.CADTimeout = 20 * time.Millisecond
		p.Compiler = compilerFunc(func(ctx context.Context, _ models.Specification, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})
		_, _, err := execute(t, p)
		assert.ErrorIs(t, err, models.ErrTimeout)
	})

	t.Run("advance_error_aborts", func(t *testing.T) {
		p := testPipeline(&fakeSlicer{})
		_, err := p.Execute(context.Background(), Input{Dir: t.TempDir(), Specification: earringSpec()}, func(stage string) error {
			if stage == StageSlicing {
				return errJobGone
			}
			return nil
		})
		assert.ErrorIs(t, err, errJobGone)
	})
}

func readReport(t *testing.T, path string) Report {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}
