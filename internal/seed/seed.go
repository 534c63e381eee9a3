// Package seed turns free request text into a best-guess structured seed.
package seed

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// Seed is the structured interpretation of a prompt before specialist refinement.
type Seed struct {
	ObjectClass    string             `json:"object_class"`
	ObjectExplicit bool               `json:"object_explicit"`
	Shape          string             `json:"shape"`
	ShapeExplicit  bool               `json:"shape_explicit"`
	Dimensions     map[string]float64 `json:"dimensions_mm"`
	ExplicitFields map[string]bool    `json:"explicit_fields"`
}

// IsExplicit reports whether field was stated in the prompt.
func (s Seed) IsExplicit(field string) bool {
	return s.ExplicitFields[field]
}

type keyword struct {
	match string
	value string
}

// Ordered: the first keyword found in the prompt wins.
var objectKeywords = []keyword{
	{"earring", models.ClassEarring},
	{"pendant", models.ClassPendant},
	{"ring", models.ClassRing},
	{"fidget spinner", models.ClassFidgetSpinner},
	{"spinner", models.ClassFidgetSpinner},
	{"fidget token", models.ClassFidgetToken},
	{"token", models.ClassFidgetToken},
}

var shapeKeywords = []keyword{
	{"heart", models.ShapeHeart},
	{"circle", models.ShapeCircle},
	{"rounded square", models.ShapeRoundedSquare},
	{"round", models.ShapeCircle},
	{"star", models.ShapeStar},
	{"square", models.ShapeRoundedSquare},
}

const (
	defaultObjectClass = models.ClassPendant
	defaultShape       = models.ShapeCircle
	cueWindow          = 24
)

var dimensionPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mm|millimetres?|millimeters?|cm|inches?|inch|in)\b`)

// Extract parses prompt into a Seed. It never fails; a prompt without any
// recognisable measurement yields an empty dimension map.
func Extract(prompt string) Seed {
	lower := strings.ToLower(prompt)
	class, classExplicit := pick(lower, objectKeywords, defaultObjectClass)
	shape, shapeExplicit := pick(lower, shapeKeywords, defaultShape)
	dims, explicit := captureDimensions(lower)

	return Seed{
		ObjectClass:    class,
		ObjectExplicit: classExplicit,
		Shape:          shape,
		ShapeExplicit:  shapeExplicit,
		Dimensions:     dims,
		ExplicitFields: explicit,
	}
}

func pick(lower string, table []keyword, fallback string) (string, bool) {
	for _, kw := range table {
		if strings.Contains(lower, kw.match) {
			return kw.value, true
		}
	}
	return fallback, false
}

func captureDimensions(lower string) (map[string]float64, map[string]bool) {
	dims := map[string]float64{}
	explicit := map[string]bool{}

	for _, m := range dimensionPattern.FindAllStringSubmatchIndex(lower, -1) {
		raw, err := strconv.ParseFloat(lower[m[2]:m[3]], 64)
		if err != nil {
			continue
		}
		value := roundMM(toMillimetres(raw, lower[m[4]:m[5]]))

		start := max(0, m[0]-cueWindow)
		end := min(len(lower), m[1]+cueWindow)
		field := classify(lower[start:end], dims)

		dims[field] = value
		explicit[field] = true
	}
	return dims, explicit
}

// classify picks the dimension field a measurement fills from the text around it.
func classify(window string, filled map[string]float64) string {
	has := func(tokens ...string) bool {
		for _, t := range tokens {
			if strings.Contains(window, t) {
				return true
			}
		}
		return false
	}

	switch {
	case has("deep", "thick", "thickness", "depth"):
		return models.DimThickness
	case has("hole"):
		return models.DimHoleDiameter
	case has("outer") && has("diam"):
		return models.DimOuterDiameter
	case has("diam"):
		if _, ok := filled[models.DimWidth]; !ok {
			return models.DimWidth
		}
		return models.DimHeight
	case has("width"):
		return models.DimWidth
	case has("height"):
		return models.DimHeight
	}

	for _, field := range []string{models.DimThickness, models.DimWidth, models.DimHeight} {
		if _, ok := filled[field]; !ok {
			return field
		}
	}
	return models.DimFeatureSize
}

func toMillimetres(value float64, unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "cm"):
		return value * 10.0
	case strings.HasPrefix(unit, "in"):
		return value * 25.4
	}
	return value
}

func roundMM(v float64) float64 {
	return math.Round(v*1000) / 1000
}
