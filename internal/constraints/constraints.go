// Package constraints clamps a specification into print-safe and size-safe bounds.
package constraints

import (
	"math"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

const (
	minThicknessMM    = 1.2
	minReliefDepthMM  = 0.6
	minHoleDiameterMM = 1.6
)

var classThicknessFloorMM = map[string]float64{
	models.ClassEarring:       1.8,
	models.ClassPendant:       2.0,
	models.ClassRing:          2.0,
	models.ClassFidgetToken:   3.0,
	models.ClassFidgetSpinner: 5.0,
}

const (
	reasonThickness    = "Raised to a print-safe thickness for PLA reliability."
	reasonEmboss       = "Raised embossed depth to maintain visible detail after slicing."
	reasonDeboss       = "Raised debossed depth to maintain visible detail after slicing."
	reasonHole         = "Raised hole diameter to reduce failed bridges and brittle edges."
	reasonMaxPrintable = "Reduced dimension to the configured maximum printable size."
)

// Limits configures one enforcement pass.
type Limits struct {
	// MaxDimensionMM caps width, height and outer_diameter.
	MaxDimensionMM float64
	// Minimums optionally raises the static floors per field. A value lower
	// than the static floor has no effect.
	Minimums map[string]float64
}

// DefaultLimits returns limits that apply only the static floor table.
func DefaultLimits(maxDimensionMM float64) Limits {
	return Limits{MaxDimensionMM: maxDimensionMM}
}

// WithMinimums returns a copy of l whose floors are raised by minimums. No
// floor exceeds MaxDimensionMM.
func (l Limits) WithMinimums(minimums map[string]float64) Limits {
	merged := make(map[string]float64, len(l.Minimums)+len(minimums))
	for k, v := range l.Minimums {
		merged[k] = v
	}
	for k, v := range minimums {
		if l.MaxDimensionMM > 0 && v > l.MaxDimensionMM {
			v = l.MaxDimensionMM
		}
		if cur, ok := merged[k]; !ok || v > cur {
			merged[k] = v
		}
	}
	l.Minimums = merged
	return l
}

// ThicknessFloor returns the thickness floor for class.
func ThicknessFloor(class string) float64 {
	floor, ok := classThicknessFloorMM[class]
	if !ok {
		return minThicknessMM
	}
	return math.Max(minThicknessMM, floor)
}

// Enforce applies every clamp rule to spec and returns the clamped copy together
// with one adjustment per changed field. Absent fields are never injected, and
// enforcing an already-enforced specification yields no adjustments.
func Enforce(spec models.Specification, limits Limits) (models.Specification, []models.Adjustment) {
	out := spec.Clone()
	adjustments := []models.Adjustment{}

	raise := func(field string, floor float64, reason string) {
		floor = math.Max(floor, limits.Minimums[field])
		value, ok := out.DimensionsMM[field]
		if !ok || value >= floor {
			return
		}
		adjustments = append(adjustments, models.Adjustment{
			Field:  field,
			From:   round3(value),
			To:     floor,
			Reason: reason,
		})
		out.DimensionsMM[field] = floor
	}

	raise(models.DimThickness, ThicknessFloor(out.ObjectClass), reasonThickness)
	raise(models.DimEmbossDepth, minReliefDepthMM, reasonEmboss)
	raise(models.DimDebossDepth, minReliefDepthMM, reasonDeboss)
	raise(models.DimHoleDiameter, minHoleDiameterMM, reasonHole)

	if limits.MaxDimensionMM > 0 {
		for _, field := range []string{models.DimWidth, models.DimHeight, models.DimOuterDiameter} {
			value, ok := out.DimensionsMM[field]
			if !ok || value <= limits.MaxDimensionMM {
				continue
			}
			adjustments = append(adjustments, models.Adjustment{
				Field:  field,
				From:   round3(value),
				To:     limits.MaxDimensionMM,
				Reason: reasonMaxPrintable,
			})
			out.DimensionsMM[field] = limits.MaxDimensionMM
		}
	}

	return out, adjustments
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
