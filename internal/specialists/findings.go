package specialists

import (
	"maps"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// IntentFinding is what the request is for.
type IntentFinding struct {
	ObjectClass string  `json:"object_class"`
	Shape       string  `json:"shape"`
	Confidence  float64 `json:"confidence"`
}

// GeometryFinding carries the proposed outline, dimensions and feature flags.
type GeometryFinding struct {
	Shape        string             `json:"shape"`
	DimensionsMM map[string]float64 `json:"dimensions_mm"`
	FeatureFlags map[string]bool    `json:"feature_flags"`
}

// ManufacturabilityFinding carries dynamic minimum thresholds and advisory notes.
type ManufacturabilityFinding struct {
	Minimums map[string]float64 `json:"minimums"`
	Notes    []string           `json:"notes"`
}

// QuestionFinding carries candidate clarification questions.
type QuestionFinding struct {
	Questions []models.ClarificationQuestion `json:"questions"`
}

// ProfileFinding selects the machine profile and material.
type ProfileFinding struct {
	MachineProfile string `json:"machine_profile"`
	Material       string `json:"material"`
}

// SafetyFinding carries warnings and a confidence that the object is safe to print.
type SafetyFinding struct {
	Warnings   []string `json:"warnings"`
	Confidence float64  `json:"confidence"`
}

// Findings is the joined output of all six evaluators.
type Findings struct {
	Intent            IntentFinding
	Geometry          GeometryFinding
	Manufacturability ManufacturabilityFinding
	Questions         QuestionFinding
	Profile           ProfileFinding
	Safety            SafetyFinding
}

// Specification merges the findings by field ownership: class from intent;
// shape, dimensions and feature flags from geometry; profile from the
// machine-profile evaluator.
func (f Findings) Specification() models.Specification {
	spec := models.Specification{
		ObjectClass:    f.Intent.ObjectClass,
		Shape:          f.Geometry.Shape,
		DimensionsMM:   maps.Clone(f.Geometry.DimensionsMM),
		FeatureFlags:   maps.Clone(f.Geometry.FeatureFlags),
		MachineProfile: f.Profile.MachineProfile,
	}
	return spec.Clone()
}
