// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting of the API and the slicer worker.
type Config struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	Port          int    `env:"PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	ArtifactsDir   string `env:"ARTIFACTS_DIR" envDefault:"./artifacts"`
	ProfileDir     string `env:"PROFILE_DIR" envDefault:"./profiles"`
	RetentionHours int    `env:"RETENTION_HOURS" envDefault:"24"`

	AgentTimeout      time.Duration `env:"AGENT_TIMEOUT" envDefault:"20s"`
	CADTimeout        time.Duration `env:"CAD_TIMEOUT" envDefault:"20s"`
	SlicingTimeout    time.Duration `env:"SLICING_TIMEOUT" envDefault:"45s"`
	ValidationTimeout time.Duration `env:"VALIDATION_TIMEOUT" envDefault:"10s"`

	MaxDimensionMM     float64 `env:"MAX_DIMENSIONS_MM" envDefault:"120"`
	MinMeshBytes       int64   `env:"MIN_MESH_BYTES" envDefault:"200"`
	RateLimitPerMinute int     `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	UseExternalWorker  bool          `env:"USE_EXTERNAL_WORKER" envDefault:"false"`
	WorkerQueue        string        `env:"WORKER_QUEUE" envDefault:"stl:jobs"`
	WorkerResultPrefix string        `env:"WORKER_RESULT_PREFIX" envDefault:"stl:job:"`
	WorkerDeadLetter   string        `env:"WORKER_DEAD_LETTER" envDefault:"stl:dead-letter"`
	WorkerTimeout      time.Duration `env:"WORKER_TIMEOUT" envDefault:"150s"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`

	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_SPECIALIST_MODEL" envDefault:"gpt-5-mini"`
	OracleTimeout time.Duration `env:"ORACLE_TIMEOUT" envDefault:"8s"`

	JWTSecret       string `env:"JWT_SECRET"`
	SlicerBinary    string `env:"SLICER_BINARY" envDefault:"bambu-studio"`
	GeometryCommand string `env:"GEOMETRY_COMMAND"`

	TracesExporter  string `env:"OTEL_TRACES_EXPORTER" envDefault:"stdout"`
	MetricsExporter string `env:"OTEL_METRICS_EXPORTER" envDefault:"prometheus"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Retention is how long sessions, jobs and artifacts live.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RetentionHours <= 0 {
		errs = append(errs, errors.New("RETENTION_HOURS must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"AGENT_TIMEOUT":        c.AgentTimeout,
		"CAD_TIMEOUT":          c.CADTimeout,
		"SLICING_TIMEOUT":      c.SlicingTimeout,
		"VALIDATION_TIMEOUT":   c.ValidationTimeout,
		"WORKER_TIMEOUT":       c.WorkerTimeout,
		"WORKER_POLL_INTERVAL": c.WorkerPollInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.MaxDimensionMM <= 0 {
		errs = append(errs, errors.New("MAX_DIMENSIONS_MM must be positive"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	switch c.StoreBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.UseExternalWorker && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required when USE_EXTERNAL_WORKER is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
