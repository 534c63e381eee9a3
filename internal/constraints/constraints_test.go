package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

func spec(class string, dims map[string]float64) models.Specification {
	return models.Specification{
		ObjectClass:    class,
		Shape:          models.ShapeCircle,
		DimensionsMM:   dims,
		FeatureFlags:   map[string]bool{"rounded_edges": true},
		MachineProfile: models.ProfileA1,
	}
}

func TestEnforce_Floors(t *testing.T) {
	tests := []struct {
		name        string
		class       string
		dims        map[string]float64
		expected    map[string]float64
		adjustments []string
	}{
		{
			name:        "pendant_thickness_raised_to_class_floor",
			class:       models.ClassPendant,
			dims:        map[string]float64{models.DimThickness: 0.4},
			expected:    map[string]float64{models.DimThickness: 2.0},
			adjustments: []string{models.DimThickness},
		},
		{
			name:        "earring_at_floor_untouched",
			class:       models.ClassEarring,
			dims:        map[string]float64{models.DimThickness: 2.0},
			expected:    map[string]float64{models.DimThickness: 2.0},
			adjustments: nil,
		},
		{
			name:  "relief_and_hole_floors",
			class: models.ClassEarring,
			dims: map[string]float64{
				models.DimEmbossDepth:  0.2,
				models.DimDebossDepth:  0.3,
				models.DimHoleDiameter: 1.0,
			},
			expected: map[string]float64{
				models.DimEmbossDepth:  0.6,
				models.DimDebossDepth:  0.6,
				models.DimHoleDiameter: 1.6,
			},
			adjustments: []string{models.DimEmbossDepth, models.DimDebossDepth, models.DimHoleDiameter},
		},
		{
			name:        "unknown_class_uses_global_floor",
			class:       "knife",
			dims:        map[string]float64{models.DimThickness: 1.0},
			expected:    map[string]float64{models.DimThickness: 1.2},
			adjustments: []string{models.DimThickness},
		},
		{
			name:  "oversized_dimensions_clamped",
			class: models.ClassFidgetToken,
			dims: map[string]float64{
				models.DimWidth:         300,
				models.DimHeight:        80,
				models.DimOuterDiameter: 121,
				models.DimThickness:     3,
			},
			expected: map[string]float64{
				models.DimWidth:         120,
				models.DimHeight:        80,
				models.DimOuterDiameter: 120,
				models.DimThickness:     3,
			},
			adjustments: []string{models.DimWidth, models.DimOuterDiameter},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, adjustments := Enforce(spec(tt.class, tt.dims), DefaultLimits(120))
			assert.Equal(t, tt.expected, out.DimensionsMM)

			var fields []string
			for _, a := range adjustments {
				fields = append(fields, a.Field)
				assert.NotEmpty(t, a.Reason)
				assert.Equal(t, out.DimensionsMM[a.Field], a.To)
			}
			assert.Equal(t, tt.adjustments, fields)
		})
	}
}

func TestEnforce_RecordsOriginalValue(t *testing.T) {
	_, adjustments := Enforce(spec(models.ClassPendant, map[string]float64{models.DimThickness: 0.4444}), DefaultLimits(120))
	require.Len(t, adjustments, 1)
	assert.Equal(t, 0.444, adjustments[0].From)
	assert.Equal(t, 2.0, adjustments[0].To)
}

func TestEnforce_DoesNotMutateInput(t *testing.T) {
	in := spec(models.ClassPendant, map[string]float64{models.DimThickness: 0.4})
	_, _ = Enforce(in, DefaultLimits(120))
	assert.Equal(t, 0.4, in.DimensionsMM[models.DimThickness])
}

func TestEnforce_MinimumsOnlyRaiseFloors(t *testing.T) {
	in := spec(models.ClassEarring, map[string]float64{
		models.DimThickness:    1.9,
		models.DimHoleDiameter: 1.7,
	})

	lowered := DefaultLimits(120).WithMinimums(map[string]float64{models.DimThickness: 0.5})
	out, adjustments := Enforce(in, lowered)
	assert.Empty(t, adjustments)
	assert.Equal(t, 1.9, out.DimensionsMM[models.DimThickness])

	raised := DefaultLimits(120).WithMinimums(map[string]float64{models.DimHoleDiameter: 2.0})
	out, adjustments = Enforce(in, raised)
	require.Len(t, adjustments, 1)
	assert.Equal(t, models.DimHoleDiameter, adjustments[0].Field)
	assert.Equal(t, 2.0, out.DimensionsMM[models.DimHoleDiameter])
}

func TestWithMinimums_CappedAtMaxDimension(t *testing.T) {
	limits := DefaultLimits(120).WithMinimums(map[string]float64{
		models.DimThickness:    500,
		models.DimHoleDiameter: 2.0,
	})
	assert.Equal(t, 120.0, limits.Minimums[models.DimThickness])
	assert.Equal(t, 2.0, limits.Minimums[models.DimHoleDiameter])

	in := models.Specification{
		ObjectClass:  "pendant",
		Shape:        "circle",
		DimensionsMM: map[string]float64{models.DimThickness: 2.0},
	}
	out, _ := Enforce(in, limits)
	assert.LessOrEqual(t, out.DimensionsMM[models.DimThickness], 120.0)
}

var dimensionFields = []string{
	models.DimThickness,
	models.DimWidth,
	models.DimHeight,
	models.DimHoleDiameter,
	models.DimOuterDiameter,
	models.DimEmbossDepth,
	models.DimDebossDepth,
	models.DimBandWidth,
}

func drawSpec(rt *rapid.T) models.Specification {
	class := rapid.SampledFrom(append([]string{"unknown"}, models.ObjectClasses...)).Draw(rt, "class")
	dims := map[string]float64{}
	for _, field := range dimensionFields {
		if rapid.Bool().Draw(rt, "has_"+field) {
			dims[field] = rapid.Float64Range(0, 400).Draw(rt, field)
		}
	}
	return spec(class, dims)
}

func TestProperty_EnforceIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limits := DefaultLimits(rapid.Float64Range(10, 300).Draw(rt, "max"))
		once, _ := Enforce(drawSpec(rt), limits)
		twice, adjustments := Enforce(once, limits)

		assert.Equal(rt, once, twice)
		assert.Empty(rt, adjustments)
	})
}

func TestProperty_FloorsRaiseAndNeverInject(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		in := drawSpec(rt)
		out, adjustments := Enforce(in, DefaultLimits(1000))

		assert.Len(rt, out.DimensionsMM, len(in.DimensionsMM))
		for field, before := range in.DimensionsMM {
			after, ok := out.DimensionsMM[field]
			require.True(rt, ok, "field %s disappeared", field)
			assert.GreaterOrEqual(rt, after, before, "field %s was lowered", field)
		}
		for _, a := range adjustments {
			assert.Greater(rt, a.To, a.From)
		}
	})
}
