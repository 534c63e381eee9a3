package models

import "slices"

// Object classes the maker understands.
const (
	ClassEarring       = "earring"
	ClassPendant       = "pendant"
	ClassRing          = "ring"
	ClassFidgetToken   = "fidget_token"
	ClassFidgetSpinner = "fidget_spinner"
)

// Shapes.
const (
	ShapeHeart         = "heart"
	ShapeCircle        = "circle"
	ShapeStar          = "star"
	ShapeRoundedSquare = "rounded_square"
	ShapeCustomOutline = "custom_outline"
)

// Machine profiles.
const (
	ProfileA1 = "A1_PLA_0.4"
	ProfileP1 = "P1_PLA_0.4"
	ProfileX1 = "X1_PLA_0.4"
)

// Dimension fields.
const (
	DimThickness     = "thickness"
	DimWidth         = "width"
	DimHeight        = "height"
	DimHoleDiameter  = "hole_diameter"
	DimOuterDiameter = "outer_diameter"
	DimBandWidth     = "band_width"
	DimEmbossDepth   = "emboss_depth"
	DimDebossDepth   = "deboss_depth"
	DimFeatureSize   = "feature_size"
)

// Question ids that are not dimension fields.
const (
	QuestionObjectClass = "object_class"
	QuestionShape       = "shape"
)

// ObjectClasses lists every known object class in presentation order.
var ObjectClasses = []string{ClassEarring, ClassPendant, ClassRing, ClassFidgetToken, ClassFidgetSpinner}

// SelectableShapes are offered in the shape question. custom_outline is accepted
// from answers but never offered.
var SelectableShapes = []string{ShapeHeart, ShapeCircle, ShapeStar, ShapeRoundedSquare}

// MachineProfiles lists every supported machine profile.
var MachineProfiles = []string{ProfileA1, ProfileP1, ProfileX1}

// DefaultMachineProfile is used when nothing more specific applies.
const DefaultMachineProfile = ProfileA1

var defaultDimensions = map[string]map[string]float64{
	ClassEarring:       {DimWidth: 20.0, DimHeight: 20.0, DimThickness: 2.0, DimHoleDiameter: 2.0},
	ClassPendant:       {DimWidth: 30.0, DimHeight: 30.0, DimThickness: 2.4, DimHoleDiameter: 2.2},
	ClassRing:          {DimOuterDiameter: 22.0, DimBandWidth: 4.0, DimThickness: 2.0},
	ClassFidgetToken:   {DimWidth: 35.0, DimHeight: 35.0, DimThickness: 3.0},
	ClassFidgetSpinner: {DimWidth: 65.0, DimHeight: 65.0, DimThickness: 5.0, DimHoleDiameter: 22.0},
}

// DefaultDimensions returns a fresh copy of the default dimensions for class.
// Unknown classes get the pendant defaults.
func DefaultDimensions(class string) map[string]float64 {
	src, ok := defaultDimensions[class]
	if !ok {
		src = defaultDimensions[ClassPendant]
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// RequiresHole reports whether class carries a hanging or bearing hole.
func RequiresHole(class string) bool {
	switch class {
	case ClassEarring, ClassPendant, ClassFidgetSpinner:
		return true
	}
	return false
}

// IsObjectClass reports whether v is a known object class.
func IsObjectClass(v string) bool { return slices.Contains(ObjectClasses, v) }

// IsShape reports whether v is an accepted shape, custom_outline included.
func IsShape(v string) bool { return v == ShapeCustomOutline || slices.Contains(SelectableShapes, v) }

// IsMachineProfile reports whether v is a supported machine profile.
func IsMachineProfile(v string) bool { return slices.Contains(MachineProfiles, v) }
