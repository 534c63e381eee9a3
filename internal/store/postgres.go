package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS maker_sessions (
		id         TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS maker_jobs (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		payload    JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS maker_jobs_session_id_idx ON maker_jobs (session_id)`,
}

// PostgresStore keeps records as JSONB rows keyed by id.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore wraps an existing pool. Call EnsureSchema before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// NewPostgresStoreFromURL connects with retries and creates the tables.
func NewPostgresStoreFromURL(ctx context.Context, url string) (*PostgresStore, error) {
	var (
		pool *pgxpool.Pool
		err  error
	)
	for attempt := 0; attempt < 10; attempt++ {
		pool, err = pgxpool.New(ctx, url)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-time.After(3 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// WithClock replaces the clock used for expiry checks.
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	s.now = now
	return s
}

// EnsureSchema creates the record tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) PutSession(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO maker_sessions (id, payload, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		session.ID, payload, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var (
		payload   []byte
		expiresAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT payload, expires_at FROM maker_sessions WHERE id = $1`, id,
	).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if Expired(expiresAt, s.now()) {
		if _, err := s.pool.Exec(ctx, `DELETE FROM maker_sessions WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to evict session: %w", err)
		}
		return nil, models.ErrExpired
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *PostgresStore) PutJob(ctx context.Context, job *models.BuildJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO maker_jobs (id, session_id, payload, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		job.ID, job.SessionID, payload, job.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.BuildJob, error) {
	var (
		payload   []byte
		expiresAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT payload, expires_at FROM maker_jobs WHERE id = $1`, id,
	).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job models.BuildJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if Expired(expiresAt, s.now()) {
		if _, err := s.pool.Exec(ctx, `DELETE FROM maker_jobs WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to evict job: %w", err)
		}
		return &job, models.ErrExpired
	}
	return &job, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
