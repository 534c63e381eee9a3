package specialists

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/bizmatters/maker-orchestrator/internal/clarify"
	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/seed"
)

// Agent names, also sent to the oracle as the evaluator identity.
const (
	AgentIntent            = "IntentAgent"
	AgentGeometry          = "GeometryAgent"
	AgentManufacturability = "ManufacturabilityAgent"
	AgentQuestion          = "QuestionAgent"
	AgentSlicing           = "SlicingAgent"
	AgentSafety            = "SafetyAgent"
)

const (
	maxNotes    = 3
	maxWarnings = 4

	baseSafetyConfidence = 0.92
	minSafetyConfidence  = 0.1
)

var unsafeKeywords = []string{"knife", "blade", "weapon"}

func suggest(ctx context.Context, oracle Oracle, agent, prompt string, s seed.Seed, schema map[string]any) map[string]any {
	if oracle == nil {
		return nil
	}
	payload, ok := oracle.Suggest(ctx, Request{Agent: agent, Prompt: prompt, Seed: s, Schema: schema})
	if !ok {
		return nil
	}
	return payload
}

func evaluateIntent(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) IntentFinding {
	finding := IntentFinding{ObjectClass: s.ObjectClass, Shape: s.Shape, Confidence: 0.58}
	if s.ObjectExplicit {
		finding.Confidence = 0.84
	}

	llm := suggest(ctx, oracle, AgentIntent, prompt, s, map[string]any{
		"object_class": strings.Join(models.ObjectClasses, "|"),
		"shape":        "heart|circle|star|rounded_square|custom_outline",
		"confidence":   "0-1",
	})
	if class, ok := llm["object_class"].(string); ok && models.IsObjectClass(class) {
		finding.ObjectClass = class
	}
	if shape, ok := llm["shape"].(string); ok && models.IsShape(shape) {
		finding.Shape = shape
	}
	if confidence, ok := number(llm["confidence"]); ok {
		finding.Confidence = clamp01(confidence)
	}
	return finding
}

func evaluateGeometry(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) GeometryFinding {
	dims := models.DefaultDimensions(s.ObjectClass)
	for field, value := range s.Dimensions {
		dims[field] = value
	}
	finding := GeometryFinding{
		Shape:        s.Shape,
		DimensionsMM: dims,
		FeatureFlags: map[string]bool{
			"mirror":        false,
			"add_loop":      s.ObjectClass == models.ClassEarring || s.ObjectClass == models.ClassPendant,
			"rounded_edges": true,
		},
	}

	llm := suggest(ctx, oracle, AgentGeometry, prompt, s, map[string]any{
		"dimensions_mm": map[string]float64{models.DimThickness: 2.0, models.DimWidth: 20.0, models.DimHeight: 20.0},
		"feature_flags": map[string]bool{"rounded_edges": true},
		"shape":         "heart|circle|star|rounded_square|custom_outline",
	})
	if raw, ok := llm["dimensions_mm"].(map[string]any); ok {
		for field, v := range raw {
			if value, ok := number(v); ok && value > 0 {
				finding.DimensionsMM[field] = value
			}
		}
	}
	if raw, ok := llm["feature_flags"].(map[string]any); ok {
		for flag, v := range raw {
			if enabled, ok := v.(bool); ok {
				finding.FeatureFlags[flag] = enabled
			}
		}
	}
	if shape, ok := llm["shape"].(string); ok && models.IsShape(shape) {
		finding.Shape = shape
	}
	return finding
}

func evaluateManufacturability(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) ManufacturabilityFinding {
	finding := ManufacturabilityFinding{
		Minimums: map[string]float64{
			models.DimThickness:    1.2,
			models.DimEmbossDepth:  0.6,
			models.DimDebossDepth:  0.6,
			models.DimHoleDiameter: 1.6,
		},
		Notes: []string{
			"Apply PLA-safe minimums for thin features.",
			"Keep small jewellery geometry under practical bridge lengths.",
		},
	}

	llm := suggest(ctx, oracle, AgentManufacturability, prompt, s, map[string]any{
		"minimums": map[string]float64{models.DimThickness: 1.2, models.DimHoleDiameter: 1.6},
		"notes":    []string{"string"},
	})
	if raw, ok := llm["minimums"].(map[string]any); ok {
		for field, v := range raw {
			if value, ok := number(v); ok && value > 0 {
				finding.Minimums[field] = value
			}
		}
	}
	if notes, ok := stringList(llm["notes"], maxNotes); ok {
		finding.Notes = notes
	}
	return finding
}

func evaluateQuestions(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) QuestionFinding {
	finding := QuestionFinding{Questions: clarify.Candidates(s)}

	llm := suggest(ctx, oracle, AgentQuestion, prompt, s, map[string]any{
		"questions": []map[string]any{
			{"id": "thickness", "label": "string", "input_type": "number", "required": true, "unit": "mm"},
		},
	})
	raw, ok := llm["questions"].([]any)
	if !ok {
		return finding
	}
	var parsed []models.ClarificationQuestion
	for _, item := range raw {
		if len(parsed) == models.MaxQuestions {
			break
		}
		if q, ok := parseQuestion(item); ok {
			parsed = append(parsed, q)
		}
	}
	if len(parsed) > 0 {
		finding.Questions = parsed
	}
	return finding
}

func evaluateProfile(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) ProfileFinding {
	finding := ProfileFinding{MachineProfile: models.DefaultMachineProfile, Material: "PLA"}
	if s.ObjectClass == models.ClassFidgetSpinner {
		finding.MachineProfile = models.ProfileP1
	}

	llm := suggest(ctx, oracle, AgentSlicing, prompt, s, map[string]any{
		"machine_profile": strings.Join(models.MachineProfiles, "|"),
		"material":        "PLA",
	})
	if profile, ok := llm["machine_profile"].(string); ok && models.IsMachineProfile(profile) {
		finding.MachineProfile = profile
	}
	if material, ok := llm["material"].(string); ok && material != "" {
		finding.Material = material
	}
	return finding
}

func evaluateSafety(ctx context.Context, oracle Oracle, prompt string, s seed.Seed) SafetyFinding {
	finding := SafetyFinding{Warnings: []string{}, Confidence: baseSafetyConfidence}

	if thickness, ok := s.Dimensions[models.DimThickness]; ok && thickness < 1.2 {
		finding.Warnings = append(finding.Warnings, "Requested thickness is below the safe PLA minimum.")
		finding.Confidence -= 0.2
	}
	lower := strings.ToLower(prompt)
	for _, kw := range unsafeKeywords {
		if strings.Contains(lower, kw) {
			finding.Warnings = append(finding.Warnings, "Potentially unsafe object class detected.")
			finding.Confidence = math.Min(finding.Confidence, 0.3)
			break
		}
	}
	finding.Confidence = math.Max(finding.Confidence, minSafetyConfidence)

	llm := suggest(ctx, oracle, AgentSafety, prompt, s, map[string]any{
		"warnings":   []string{"string"},
		"confidence": "0-1",
	})
	if warnings, ok := stringList(llm["warnings"], maxWarnings); ok {
		finding.Warnings = warnings
	}
	if confidence, ok := number(llm["confidence"]); ok {
		finding.Confidence = clamp01(confidence)
	}
	return finding
}

type oracleQuestion struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     string   `json:"input_type"`
	Required *bool    `json:"required"`
	Options  []string `json:"options"`
	Unit     string   `json:"unit"`
}

func parseQuestion(item any) (models.ClarificationQuestion, bool) {
	raw, err := json.Marshal(item)
	if err != nil {
		return models.ClarificationQuestion{}, false
	}
	var q oracleQuestion
	if err := json.Unmarshal(raw, &q); err != nil {
		return models.ClarificationQuestion{}, false
	}
	kind := models.InputKind(q.Kind)
	switch kind {
	case models.InputChoice, models.InputNumber, models.InputText:
	default:
		return models.ClarificationQuestion{}, false
	}
	if q.ID == "" || q.Label == "" {
		return models.ClarificationQuestion{}, false
	}
	required := true
	if q.Required != nil {
		required = *q.Required
	}
	return models.ClarificationQuestion{
		ID:       q.ID,
		Label:    q.Label,
		Kind:     kind,
		Required: required,
		Options:  q.Options,
		Unit:     q.Unit,
	}, true
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringList(v any, limit int) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, min(len(items), limit))
	for _, item := range items {
		if len(out) == limit {
			break
		}
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
