package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 20*time.Second, cfg.AgentTimeout)
	assert.Equal(t, 45*time.Second, cfg.SlicingTimeout)
	assert.Equal(t, 120.0, cfg.MaxDimensionMM)
	assert.Equal(t, int64(200), cfg.MinMeshBytes)
	assert.Equal(t, "stl:jobs", cfg.WorkerQueue)
	assert.Equal(t, "stl:job:", cfg.WorkerResultPrefix)
	assert.Equal(t, 150*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, "bambu-studio", cfg.SlicerBinary)
	assert.False(t, cfg.UseExternalWorker)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SLICING_TIMEOUT", "90s")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("USE_EXTERNAL_WORKER", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.SlicingTimeout)
	assert.True(t, cfg.UseExternalWorker)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{"zero_retention", map[string]string{"RETENTION_HOURS": "0"}, "RETENTION_HOURS must be positive"},
		{"negative_timeout", map[string]string{"CAD_TIMEOUT": "-1s"}, "CAD_TIMEOUT must be positive"},
		{"redis_without_url", map[string]string{"STORE_BACKEND": "redis"}, "REDIS_URL is required for the redis store"},
		{"postgres_without_dsn", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL is required"},
		{"unknown_backend", map[string]string{"STORE_BACKEND": "etcd"}, `unknown STORE_BACKEND "etcd"`},
		{"worker_without_redis", map[string]string{"USE_EXTERNAL_WORKER": "true"}, "USE_EXTERNAL_WORKER"},
		{"zero_max_dimension", map[string]string{"MAX_DIMENSIONS_MM": "0"}, "MAX_DIMENSIONS_MM must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
