package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/build"
	"github.com/bizmatters/maker-orchestrator/internal/models"
)

type brokenCompiler struct{}

func (brokenCompiler) Compile(context.Context, models.Specification, string) error {
	return os.ErrPermission
}

var testConfig = Config{
	Queue:        "stl:jobs",
	ResultPrefix: "stl:job:",
	DeadLetter:   "stl:dead-letter",
	BlockTimeout: time.Second,
}

func newWorker(t *testing.T, compiler build.GeometryCompiler) (*miniredis.Miniredis, *Worker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	pipeline := &build.Pipeline{
		Compiler:          compiler,
		MinMeshBytes:      200,
		CADTimeout:        5 * time.Second,
		ValidationTimeout: time.Second,
		SlicingTimeout:    time.Second,
		SlicingAttempts:   1,
	}
	return mr, New(client, pipeline, testConfig, zap.NewNop())
}

func enqueue(t *testing.T, mr *miniredis.Miniredis, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	_, err = mr.Lpush(testConfig.Queue, string(raw))
	require.NoError(t, err)
}

func readResult(t *testing.T, mr *miniredis.Miniredis, jobID string) build.WorkerResult {
	t.Helper()
	raw := mr.HGet(testConfig.ResultPrefix+jobID, build.ResultField)
	require.NotEmpty(t, raw)
	var result build.WorkerResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	return result
}

func payload(dir string) build.QueuePayload {
	return build.QueuePayload{
		JobID:     "job-1",
		SessionID: "session-1",
		Specification: models.Specification{
			ObjectClass:    models.ClassPendant,
			Shape:          models.ShapeCircle,
			DimensionsMM:   models.DefaultDimensions(models.ClassPendant),
			MachineProfile: models.ProfileA1,
		},
		MachineProfile: models.ProfileA1,
		ArtifactDir:    filepath.Join(dir, "job-1"),
	}
}

func TestWorker_CompletesWithPlaceholderPackage(t *testing.T) {
	mr, w := newWorker(t, build.BoxCompiler{})
	enqueue(t, mr, payload(t.TempDir()))

	handled, err := w.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, handled)

	result := readResult(t, mr, "job-1")
	assert.Equal(t, models.BuildCompleted, result.Status)
	assert.NotEmpty(t, result.FallbackReason)
	assert.FileExists(t, result.MeshPath)
	assert.FileExists(t, result.PackagePath)
	assert.FileExists(t, result.ReportPath)
	assert.False(t, mr.Exists(testConfig.DeadLetter))
	assert.NotEmpty(t, mr.HGet(testConfig.ResultPrefix+"job-1", build.StageField))
}

func TestWorker_PipelineFailure(t *testing.T) {
	mr, w := newWorker(t, brokenCompiler{})
	enqueue(t, mr, payload(t.TempDir()))

	_, err := w.Next(context.Background())
	require.NoError(t, err)

	result := readResult(t, mr, "job-1")
	assert.Equal(t, models.BuildFailed, result.Status)
	assert.Equal(t, os.ErrPermission.Error(), result.Error)

	entries, err := mr.List(testConfig.DeadLetter)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWorker_MalformedPayload(t *testing.T) {
	for name, raw := range map[string]string{
		"not_json":   "{nope",
		"missing_id": `{"artifact_dir":"/tmp/x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			mr, w := newWorker(t, build.BoxCompiler{})
			w.Process(context.Background(), raw)

			entries, err := mr.List(testConfig.DeadLetter)
			require.NoError(t, err)
			require.Len(t, entries, 1)

			var entry deadLetter
			require.NoError(t, json.Unmarshal([]byte(entries[0]), &entry))
			assert.Equal(t, raw, entry.Payload)
			assert.NotEmpty(t, entry.Error)
		})
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	mr, w := newWorker(t, build.BoxCompiler{})
	enqueue(t, mr, payload(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.Exists(testConfig.ResultPrefix + "job-1")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
