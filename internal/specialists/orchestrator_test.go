package specialists

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/seed"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOracle struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	calls     []string
}

func (f *fakeOracle) Suggest(_ context.Context, req Request) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Agent)
	resp, ok := f.responses[req.Agent]
	return resp, ok
}

type blockingOracle struct{}

func (blockingOracle) Suggest(ctx context.Context, _ Request) (map[string]any, bool) {
	<-ctx.Done()
	return nil, false
}

func evaluate(t *testing.T, oracle Oracle, prompt string) Findings {
	t.Helper()
	findings, err := NewOrchestrator(oracle, zap.NewNop()).Evaluate(context.Background(), prompt, seed.Extract(prompt))
	require.NoError(t, err)
	return findings
}

func TestEvaluate_Baselines(t *testing.T) {
	findings := evaluate(t, nil, "I want a 2mm deep earring, in the shape of a heart.")

	assert.Equal(t, IntentFinding{ObjectClass: models.ClassEarring, Shape: models.ShapeHeart, Confidence: 0.84}, findings.Intent)
	assert.Equal(t, map[string]float64{
		models.DimWidth:        20,
		models.DimHeight:       20,
		models.DimThickness:    2,
		models.DimHoleDiameter: 2,
	}, findings.Geometry.DimensionsMM)
	assert.Equal(t, map[string]bool{"mirror": false, "add_loop": true, "rounded_edges": true}, findings.Geometry.FeatureFlags)
	assert.Equal(t, 1.6, findings.Manufacturability.Minimums[models.DimHoleDiameter])
	assert.Len(t, findings.Manufacturability.Notes, 2)
	assert.Equal(t, ProfileFinding{MachineProfile: models.ProfileA1, Material: "PLA"}, findings.Profile)
	assert.Equal(t, 0.92, findings.Safety.Confidence)
	assert.Empty(t, findings.Safety.Warnings)

	var ids []string
	for _, q := range findings.Questions.Questions {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"width", "height", "hole_diameter"}, ids)
}

func TestEvaluate_BaselineVariants(t *testing.T) {
	t.Run("unstated_class_has_low_intent_confidence", func(t *testing.T) {
		findings := evaluate(t, nil, "make a star")
		assert.Equal(t, 0.58, findings.Intent.Confidence)
		assert.Equal(t, models.ClassPendant, findings.Intent.ObjectClass)
	})

	t.Run("spinner_uses_p1_profile", func(t *testing.T) {
		findings := evaluate(t, nil, "a fidget spinner")
		assert.Equal(t, models.ProfileP1, findings.Profile.MachineProfile)
		assert.False(t, findings.Geometry.FeatureFlags["add_loop"])
	})

	t.Run("thin_request_lowers_safety", func(t *testing.T) {
		findings := evaluate(t, nil, "I want a 0.4mm deep pendant in a circle.")
		assert.InDelta(t, 0.72, findings.Safety.Confidence, 1e-9)
		assert.Len(t, findings.Safety.Warnings, 1)
		assert.Equal(t, 0.4, findings.Geometry.DimensionsMM[models.DimThickness])
	})

	t.Run("unsafe_keyword_caps_confidence", func(t *testing.T) {
		findings := evaluate(t, nil, "a 0.5mm thick knife pendant")
		assert.InDelta(t, 0.3, findings.Safety.Confidence, 1e-9)
		assert.Len(t, findings.Safety.Warnings, 2)
	})
}

func TestEvaluate_OracleOverlay(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]map[string]any{
		AgentIntent: {"object_class": "ring", "shape": "star", "confidence": 1.7},
		AgentGeometry: {
			"dimensions_mm": map[string]any{"width": 25.0, "height": -3.0, "band_width": "wide"},
			"feature_flags": map[string]any{"mirror": true, "engrave": "yes"},
			"shape":         "hexagon",
		},
		AgentManufacturability: {
			"minimums": map[string]any{"thickness": 2.2},
			"notes":    []any{"a", "b", 3.0, "c", "d"},
		},
		AgentQuestion: {"questions": []any{
			map[string]any{"id": "thickness", "label": "How thick?", "input_type": "number", "unit": "mm"},
			map[string]any{"id": "colour", "label": "Colour?", "input_type": "palette"},
			"junk",
		}},
		AgentSlicing: {"machine_profile": "X1_PLA_0.4", "material": "PETG"},
		AgentSafety:  {"warnings": []any{"sharp"}, "confidence": -0.5},
	}}

	findings := evaluate(t, oracle, "I want a 2mm deep earring, in the shape of a heart.")

	assert.Equal(t, models.ClassRing, findings.Intent.ObjectClass)
	assert.Equal(t, models.ShapeStar, findings.Intent.Shape)
	assert.Equal(t, 1.0, findings.Intent.Confidence)

	assert.Equal(t, models.ShapeHeart, findings.Geometry.Shape)
	assert.Equal(t, 25.0, findings.Geometry.DimensionsMM[models.DimWidth])
	assert.Equal(t, 20.0, findings.Geometry.DimensionsMM[models.DimHeight])
	assert.NotContains(t, findings.Geometry.DimensionsMM, models.DimBandWidth)
	assert.True(t, findings.Geometry.FeatureFlags["mirror"])
	assert.NotContains(t, findings.Geometry.FeatureFlags, "engrave")

	assert.Equal(t, 2.2, findings.Manufacturability.Minimums[models.DimThickness])
	assert.Equal(t, []string{"a", "b", "c"}, findings.Manufacturability.Notes)

	require.Len(t, findings.Questions.Questions, 1)
	assert.Equal(t, "How thick?", findings.Questions.Questions[0].Label)
	assert.True(t, findings.Questions.Questions[0].Required)

	assert.Equal(t, ProfileFinding{MachineProfile: models.ProfileX1, Material: "PETG"}, findings.Profile)
	assert.Equal(t, []string{"sharp"}, findings.Safety.Warnings)
	assert.Equal(t, 0.0, findings.Safety.Confidence)

	assert.ElementsMatch(t, []string{
		AgentIntent, AgentGeometry, AgentManufacturability, AgentQuestion, AgentSlicing, AgentSafety,
	}, oracle.calls)
}

func TestEvaluate_OracleFailureKeepsBaseline(t *testing.T) {
	prompt := "I want a 2mm deep earring, in the shape of a heart."
	withFailures := evaluate(t, &fakeOracle{}, prompt)
	baseline := evaluate(t, nil, prompt)
	assert.Equal(t, baseline, withFailures)
}

func TestEvaluate_TimeoutAbandonsPass(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewOrchestrator(blockingOracle{}, zap.NewNop()).Evaluate(ctx, "a heart pendant", seed.Extract("a heart pendant"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTimeout))
}

func TestFindings_SpecificationOwnership(t *testing.T) {
	findings := Findings{
		Intent: IntentFinding{ObjectClass: models.ClassRing, Shape: models.ShapeStar},
		Geometry: GeometryFinding{
			Shape:        models.ShapeHeart,
			DimensionsMM: map[string]float64{models.DimThickness: 2},
			FeatureFlags: map[string]bool{"rounded_edges": true},
		},
		Profile: ProfileFinding{MachineProfile: models.ProfileP1},
	}

	spec := findings.Specification()
	assert.Equal(t, models.ClassRing, spec.ObjectClass)
	assert.Equal(t, models.ShapeHeart, spec.Shape)
	assert.Equal(t, models.ProfileP1, spec.MachineProfile)

	spec.DimensionsMM[models.DimThickness] = 9
	assert.Equal(t, 2.0, findings.Geometry.DimensionsMM[models.DimThickness])
}
