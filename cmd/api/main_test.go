package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

type stuckDispatcher struct {
	release chan struct{}
}

func (d *stuckDispatcher) Dispatch(context.Context, *models.BuildJob, *models.Session) error {
	return nil
}

func (d *stuckDispatcher) Wait() { <-d.release }

func TestWaitForBuilds_StopsAtDeadline(t *testing.T) {
	d := &stuckDispatcher{release: make(chan struct{})}
	defer close(d.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	waitForBuilds(ctx, d, zap.NewNop())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitForBuilds_ReturnsWhenIdle(t *testing.T) {
	d := &stuckDispatcher{release: make(chan struct{})}
	close(d.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	waitForBuilds(ctx, d, zap.NewNop())
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, ctx.Err())
}
