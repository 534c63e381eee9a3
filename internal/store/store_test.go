package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSession(now time.Time) *models.Session {
	spec := models.Specification{
		ObjectClass:    models.ClassEarring,
		Shape:          models.ShapeHeart,
		DimensionsMM:   models.DefaultDimensions(models.ClassEarring),
		FeatureFlags:   map[string]bool{"rounded_edges": true},
		MachineProfile: models.ProfileA1,
	}
	return &models.Session{
		ID:            uuid.NewString(),
		Status:        models.SessionReadyToBuild,
		Summary:       "summary",
		Questions:     []models.ClarificationQuestion{},
		Specification: &spec,
		Adjustments:   []models.Adjustment{},
		Prompt:        "a heart earring",
		Answers:       map[string]any{"width": 20.0},
		CreatedAt:     now.UTC(),
		ExpiresAt:     now.Add(time.Hour).UTC(),
	}
}

func newJob(now time.Time) *models.BuildJob {
	return &models.BuildJob{
		ID:             uuid.NewString(),
		SessionID:      uuid.NewString(),
		Status:         models.BuildQueued,
		Token:          "token-123456",
		Stage:          "Understanding request",
		MachineProfile: models.ProfileA1,
		MeshPath:       "/tmp/x/model.stl",
		CreatedAt:      now.UTC(),
		ExpiresAt:      now.Add(time.Hour).UTC(),
	}
}

// runContract exercises the behaviour every backend shares. newStore receives
// the clock the store must use for expiry checks.
func runContract(t *testing.T, newStore func(t *testing.T, clock *fakeClock) Store) {
	ctx := context.Background()

	t.Run("session_round_trip", func(t *testing.T) {
		clock := &fakeClock{t: time.Now().Truncate(time.Millisecond)}
		s := newStore(t, clock)
		session := newSession(clock.Now())

		require.NoError(t, s.PutSession(ctx, session))
		got, err := s.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.Status, got.Status)
		assert.Equal(t, session.Specification.DimensionsMM, got.Specification.DimensionsMM)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("put_replaces_record", func(t *testing.T) {
		clock := &fakeClock{t: time.Now().Truncate(time.Millisecond)}
		s := newStore(t, clock)
		session := newSession(clock.Now())
		require.NoError(t, s.PutSession(ctx, session))

		session.Status = models.SessionBuilding
		require.NoError(t, s.PutSession(ctx, session))

		got, err := s.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionBuilding, got.Status)
	})

	t.Run("unknown_ids_not_found", func(t *testing.T) {
		s := newStore(t, &fakeClock{t: time.Now()})

		_, err := s.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.False(t, errors.Is(err, models.ErrExpired))

		_, err = s.GetJob(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("expired_session_evicted", func(t *testing.T) {
		clock := &fakeClock{t: time.Now().Truncate(time.Millisecond)}
		s := newStore(t, clock)
		session := newSession(clock.Now())
		require.NoError(t, s.PutSession(ctx, session))

		clock.Advance(2 * time.Hour)
		_, err := s.GetSession(ctx, session.ID)
		assert.ErrorIs(t, err, models.ErrExpired)
		assert.ErrorIs(t, err, models.ErrNotFound)

		clock.Advance(-2 * time.Hour)
		_, err = s.GetSession(ctx, session.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.False(t, errors.Is(err, models.ErrExpired))
	})

	t.Run("expired_job_returned_once_for_cleanup", func(t *testing.T) {
		clock := &fakeClock{t: time.Now().Truncate(time.Millisecond)}
		s := newStore(t, clock)
		job := newJob(clock.Now())
		require.NoError(t, s.PutJob(ctx, job))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.MeshPath, got.MeshPath)

		clock.Advance(time.Hour + time.Second)
		evicted, err := s.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, models.ErrExpired)
		require.NotNil(t, evicted)
		assert.Equal(t, job.MeshPath, evicted.MeshPath)

		again, err := s.GetJob(ctx, job.ID)
		assert.Nil(t, again)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.False(t, errors.Is(err, models.ErrExpired))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t, &fakeClock{t: time.Now()}).Ping(ctx))
	})
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Expired(now, now))
	assert.False(t, Expired(now.Add(time.Second), now))
	assert.True(t, Expired(now.Add(-time.Nanosecond), now))
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T, clock *fakeClock) Store {
		return NewMemoryStore().WithClock(clock.Now)
	})
}

func TestMemoryStore_IsolatesRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newSession(time.Now())
	require.NoError(t, s.PutSession(ctx, session))

	session.Specification.DimensionsMM[models.DimWidth] = 99
	session.Answers["height"] = 1.0

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Specification.DimensionsMM[models.DimWidth])
	assert.NotContains(t, got.Answers, "height")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "etcd"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
