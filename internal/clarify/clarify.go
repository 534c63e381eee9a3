// Package clarify decides which clarification questions are still open for a
// session and applies answers back onto a specification.
package clarify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/seed"
)

// SafetyThreshold is the safety confidence below which a thickness
// confirmation is forced into the question list.
const SafetyThreshold = 0.6

var candidateLabels = []struct {
	field string
	label string
}{
	{models.DimWidth, "What width should it be?"},
	{models.DimHeight, "What height should it be?"},
	{models.DimThickness, "What thickness should it be?"},
}

func objectQuestion() models.ClarificationQuestion {
	return models.ClarificationQuestion{
		ID:       models.QuestionObjectClass,
		Label:    "What kind of item are you making?",
		Kind:     models.InputChoice,
		Required: true,
		Options:  append([]string(nil), models.ObjectClasses...),
	}
}

func shapeQuestion() models.ClarificationQuestion {
	return models.ClarificationQuestion{
		ID:       models.QuestionShape,
		Label:    "Which shape should we use?",
		Kind:     models.InputChoice,
		Required: true,
		Options:  append([]string(nil), models.SelectableShapes...),
	}
}

func dimensionQuestion(field, label string) models.ClarificationQuestion {
	return models.ClarificationQuestion{
		ID:       field,
		Label:    label,
		Kind:     models.InputNumber,
		Required: true,
		Unit:     "mm",
	}
}

// Candidates returns the initial question list for a freshly extracted seed:
// object class and shape when not stated, then unstated width, height and
// thickness, then the hole diameter for hole-bearing classes.
func Candidates(s seed.Seed) []models.ClarificationQuestion {
	var questions []models.ClarificationQuestion
	if !s.ObjectExplicit {
		questions = append(questions, objectQuestion())
	}
	if !s.ShapeExplicit {
		questions = append(questions, shapeQuestion())
	}
	for _, c := range candidateLabels {
		if !s.IsExplicit(c.field) {
			questions = append(questions, dimensionQuestion(c.field, c.label))
		}
	}
	if models.RequiresHole(s.ObjectClass) && !s.IsExplicit(models.DimHoleDiameter) {
		questions = append(questions, dimensionQuestion(models.DimHoleDiameter, "What hole diameter would you like?"))
	}
	return Cap(questions)
}

// CriticalFields returns the dimension fields a specification of class must carry.
func CriticalFields(class string) []string {
	fields := []string{models.DimThickness}
	if class != models.ClassRing {
		fields = append(fields, models.DimWidth, models.DimHeight)
	}
	if models.RequiresHole(class) {
		fields = append(fields, models.DimHoleDiameter)
	}
	return fields
}

// Pending recomputes the open questions after answers have been applied to spec.
func Pending(s seed.Seed, spec models.Specification, answers map[string]any) []models.ClarificationQuestion {
	var questions []models.ClarificationQuestion
	if _, answered := answers[models.QuestionObjectClass]; !s.ObjectExplicit && !answered {
		questions = append(questions, objectQuestion())
	}
	if _, answered := answers[models.QuestionShape]; !s.ShapeExplicit && !answered {
		questions = append(questions, shapeQuestion())
	}
	for _, field := range CriticalFields(spec.ObjectClass) {
		if _, ok := spec.DimensionsMM[field]; ok {
			continue
		}
		label := fmt.Sprintf("Please provide %s.", strings.ReplaceAll(field, "_", " "))
		questions = append(questions, dimensionQuestion(field, label))
	}
	return Cap(questions)
}

// WithSafetyOverride prepends a thickness confirmation when confidence is below
// SafetyThreshold and no thickness question is queued yet.
func WithSafetyOverride(questions []models.ClarificationQuestion, confidence float64) []models.ClarificationQuestion {
	if confidence >= SafetyThreshold {
		return questions
	}
	for _, q := range questions {
		if q.ID == models.DimThickness {
			return questions
		}
	}
	confirm := dimensionQuestion(models.DimThickness, "Please confirm the thickness to avoid fragile prints.")
	return Cap(append([]models.ClarificationQuestion{confirm}, questions...))
}

// Input carries everything Resolve needs for one pass.
type Input struct {
	Seed             seed.Seed
	Specification    models.Specification
	Answers          map[string]any
	Candidates       []models.ClarificationQuestion
	SafetyConfidence float64
}

// Resolve picks the question list for one orchestration pass. Without answers
// the candidates stand; with answers the pending set is recomputed from the
// merged specification. The safety override applies to both.
func Resolve(in Input) []models.ClarificationQuestion {
	questions := Cap(in.Candidates)
	if len(in.Answers) > 0 {
		questions = Pending(in.Seed, in.Specification, in.Answers)
	}
	questions = WithSafetyOverride(questions, in.SafetyConfidence)
	if questions == nil {
		return []models.ClarificationQuestion{}
	}
	return questions
}

// Cap truncates questions to models.MaxQuestions, returning a copy.
func Cap(questions []models.ClarificationQuestion) []models.ClarificationQuestion {
	if len(questions) > models.MaxQuestions {
		questions = questions[:models.MaxQuestions]
	}
	if questions == nil {
		return nil
	}
	return append([]models.ClarificationQuestion(nil), questions...)
}

// ApplyAnswers writes answers onto a copy of spec. object_class and shape
// answers are validated against the catalog; a new class backfills its missing
// default dimensions. Every other key is parsed as a number and stored as a
// dimension; values that do not parse are ignored.
func ApplyAnswers(spec models.Specification, answers map[string]any) models.Specification {
	out := spec.Clone()

	if raw, ok := answers[models.QuestionObjectClass]; ok {
		class := strings.TrimSpace(fmt.Sprint(raw))
		if models.IsObjectClass(class) {
			out.ObjectClass = class
			for field, value := range models.DefaultDimensions(class) {
				if _, exists := out.DimensionsMM[field]; !exists {
					out.DimensionsMM[field] = value
				}
			}
		}
	}
	if raw, ok := answers[models.QuestionShape]; ok {
		shape := strings.TrimSpace(fmt.Sprint(raw))
		if models.IsShape(shape) {
			out.Shape = shape
		}
	}

	for key, raw := range answers {
		if key == models.QuestionObjectClass || key == models.QuestionShape {
			continue
		}
		if value, ok := ParseNumber(raw); ok {
			out.DimensionsMM[key] = value
		}
	}
	return out
}

// CheckAnswers rejects answer values that cannot mean a dimension. Booleans
// are refused outright instead of being read as 0 or 1.
func CheckAnswers(answers map[string]any) error {
	for key, raw := range answers {
		if _, ok := raw.(bool); ok {
			return fmt.Errorf("answer %q must be a number or text, not a boolean: %w", key, models.ErrValidation)
		}
	}
	return nil
}

// ParseNumber converts an answer value into a finite float.
func ParseNumber(raw any) (float64, bool) {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		value = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		value = f
	default:
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
