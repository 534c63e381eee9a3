// Package store is the TTL record store for sessions and build jobs.
//
// Records are replaced wholesale on every write. Expiry is checked lazily on
// read: an expired record is evicted and the read reports models.ErrExpired.
// GetJob also returns the evicted job so the caller can remove its artifacts;
// the store itself never touches the filesystem.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// Store is implemented by every backend.
type Store interface {
	PutSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	PutJob(ctx context.Context, job *models.BuildJob) error
	// GetJob returns models.ErrNotFound for unknown ids. For an expired job it
	// returns the evicted record together with models.ErrExpired.
	GetJob(ctx context.Context, id string) (*models.BuildJob, error)
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	RedisURL    string
	DatabaseURL string
	KeyPrefix   string
	// Grace is added to the record expiry to form the Redis key TTL, so lazy
	// reads still see the record and can trigger artifact cleanup.
	Grace time.Duration
}

// Expired reports whether a record expiring at expiresAt is gone at now.
func Expired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStoreFromURL(ctx, opts.RedisURL, opts.KeyPrefix, opts.Grace)
	case BackendPostgres:
		return NewPostgresStoreFromURL(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}
