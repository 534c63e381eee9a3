// Package build runs the asynchronous build pipeline that turns a final
// specification into downloadable mesh, package and report artifacts.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// Stage labels, in the order a job moves through them.
const (
	StageUnderstanding = "Understanding request"
	StageGeometry      = "Preparing geometry"
	StageValidation    = "Validating printability"
	StageSlicing       = "Slicing for printer profile"
	StagePackaging     = "Packaging files"
)

// Stages is the fixed stage sequence.
var Stages = []string{StageUnderstanding, StageGeometry, StageValidation, StageSlicing, StagePackaging}

// StageIndex returns the position of stage in Stages, or -1.
func StageIndex(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// withTimeout runs fn with a deadline of d. If the deadline passes before fn
// returns, the stage is reported as timed out even if fn ignores ctx.
func withTimeout(ctx context.Context, stage string, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s exceeded %s: %w", stage, d, models.ErrTimeout)
		}
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s exceeded %s: %w", stage, d, models.ErrTimeout)
		}
		return ctx.Err()
	}
}
