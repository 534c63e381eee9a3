package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

const defaultKeyPrefix = "maker:"

// RedisStore keeps JSON-encoded records in Redis with a key TTL of the record
// expiry plus a grace period.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	grace     time.Duration
	now       func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string, grace time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if grace <= 0 {
		grace = time.Hour
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, grace: grace, now: time.Now}
}

// NewRedisStoreFromURL connects to url and verifies the connection.
func NewRedisStoreFromURL(ctx context.Context, url, keyPrefix string, grace time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, keyPrefix, grace), nil
}

// WithClock replaces the clock used for expiry checks.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

// Client exposes the underlying client for components sharing the connection.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) sessionKey(id string) string { return s.keyPrefix + "session:" + id }

func (s *RedisStore) jobKey(id string) string { return s.keyPrefix + "job:" + id }

func (s *RedisStore) put(ctx context.Context, key string, record any, expiresAt time.Time) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	ttl := expiresAt.Sub(s.now()) + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, record any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to get record: %w", err)
	}
	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

func (s *RedisStore) PutSession(ctx context.Context, session *models.Session) error {
	return s.put(ctx, s.sessionKey(session.ID), session, session.ExpiresAt)
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.get(ctx, s.sessionKey(id), &session); err != nil {
		return nil, err
	}
	if Expired(session.ExpiresAt, s.now()) {
		if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
			return nil, fmt.Errorf("failed to evict session: %w", err)
		}
		return nil, models.ErrExpired
	}
	return &session, nil
}

func (s *RedisStore) PutJob(ctx context.Context, job *models.BuildJob) error {
	return s.put(ctx, s.jobKey(job.ID), job, job.ExpiresAt)
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*models.BuildJob, error) {
	var job models.BuildJob
	if err := s.get(ctx, s.jobKey(id), &job); err != nil {
		return nil, err
	}
	if Expired(job.ExpiresAt, s.now()) {
		if err := s.client.Del(ctx, s.jobKey(id)).Err(); err != nil {
			return nil, fmt.Errorf("failed to evict job: %w", err)
		}
		return &job, models.ErrExpired
	}
	return &job, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
