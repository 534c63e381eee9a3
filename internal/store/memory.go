package store

import (
	"context"
	"sync"
	"time"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	jobs     map[string]*models.BuildJob
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		jobs:     make(map[string]*models.BuildJob),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for expiry checks.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) PutSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if Expired(session.ExpiresAt, m.now()) {
		delete(m.sessions, id)
		return nil, models.ErrExpired
	}
	return session.Clone(), nil
}

func (m *MemoryStore) PutJob(_ context.Context, job *models.BuildJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*models.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if Expired(job.ExpiresAt, m.now()) {
		delete(m.jobs, id)
		return job.Clone(), models.ErrExpired
	}
	return job.Clone(), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
