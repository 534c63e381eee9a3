package models

import "maps"

// Specification is the canonical description of the object to build.
// Values are replaced wholesale; use Clone before mutating a copy.
type Specification struct {
	ObjectClass    string             `json:"object_class"`
	Shape          string             `json:"shape"`
	DimensionsMM   map[string]float64 `json:"dimensions_mm"`
	FeatureFlags   map[string]bool    `json:"feature_flags"`
	MachineProfile string             `json:"machine_profile"`
}

// Clone returns a deep copy of the specification.
func (s Specification) Clone() Specification {
	out := s
	out.DimensionsMM = maps.Clone(s.DimensionsMM)
	if out.DimensionsMM == nil {
		out.DimensionsMM = map[string]float64{}
	}
	out.FeatureFlags = maps.Clone(s.FeatureFlags)
	if out.FeatureFlags == nil {
		out.FeatureFlags = map[string]bool{}
	}
	return out
}

// Dimension returns the value of field and whether it is present.
func (s Specification) Dimension(field string) (float64, bool) {
	v, ok := s.DimensionsMM[field]
	return v, ok
}

// Adjustment records one automatic correction applied to a specification field.
type Adjustment struct {
	Field  string  `json:"field"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Reason string  `json:"reason"`
}

// InputKind is the kind of input a clarification question expects.
type InputKind string

const (
	InputChoice InputKind = "select"
	InputNumber InputKind = "number"
	InputText   InputKind = "text"
)

// ClarificationQuestion is a question surfaced to the user. ID is the key answers
// are applied back onto.
type ClarificationQuestion struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Kind     InputKind `json:"input_type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Unit     string    `json:"unit,omitempty"`
}
