package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

type staticIssuer struct{}

func (staticIssuer) IssueDownloadToken(jobID string, _ time.Time) (string, error) {
	return "tok-" + jobID, nil
}

type failingIssuer struct{}

func (failingIssuer) IssueDownloadToken(string, time.Time) (string, error) {
	return "", errors.New("no key")
}

type fakeSlicer struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *fakeSlicer) Slice(_ context.Context, meshPath, outPath, profile string) (SliceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return SliceResult{}, f.err
		}
		return SliceResult{}, errors.New("slicer crashed")
	}
	if err := os.WriteFile(outPath, []byte("sliced:"+profile), 0o644); err != nil {
		return SliceResult{}, err
	}
	return SliceResult{Engine: "fake-slicer"}, nil
}

type compilerFunc func(ctx context.Context, spec models.Specification, outPath string) error

func (f compilerFunc) Compile(ctx context.Context, spec models.Specification, outPath string) error {
	return f(ctx, spec, outPath)
}

func tinyMeshCompiler() compilerFunc {
	return func(_ context.Context, _ models.Specification, outPath string) error {
		return os.WriteFile(outPath, []byte("solid x\nendsolid x\n"), 0o644)
	}
}

func earringSpec() models.Specification {
	return models.Specification{
		ObjectClass:    models.ClassEarring,
		Shape:          models.ShapeHeart,
		DimensionsMM:   models.DefaultDimensions(models.ClassEarring),
		FeatureFlags:   map[string]bool{"rounded_edges": true},
		MachineProfile: models.ProfileA1,
	}
}

func testPipeline(slicer Slicer) *Pipeline {
	return &Pipeline{
		Compiler:          BoxCompiler{},
		Slicer:            slicer,
		MinMeshBytes:      200,
		CADTimeout:        5 * time.Second,
		ValidationTimeout: time.Second,
		SlicingTimeout:    5 * time.Second,
		SlicingAttempts:   2,
	}
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
