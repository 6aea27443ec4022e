package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/souchan25/virtualHealthAssistant/internal/llm"
)

// ErrParse means no usable opinion could be recovered from the text.
var ErrParse = errors.New("unparseable validation opinion")

const (
	// MaxAdjustment bounds the confidence adjustment a validator may assert.
	MaxAdjustment = 0.15

	// DefaultReasoning fills in for an opinion that omits its reasoning.
	DefaultReasoning = "LLM validation completed"
)

// Opinion is a validator's judgment of a classifier prediction.
type Opinion struct {
	Agrees      bool
	Delta       float64
	Reasoning   string
	Alternative *string
}

// OpinionSchema describes the object validators are asked to return. Every
// field is optional; missing ones take defaults.
var OpinionSchema = &llm.Schema{
	Name:        "diagnosis-opinion",
	Description: "Agreement with a predicted diagnosis and a bounded confidence adjustment",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agrees": map[string]any{
				"type":        "boolean",
				"description": "Whether the predicted condition is medically reasonable for the symptoms",
			},
			"confidence_adjustment": map[string]any{
				"type":        "number",
				"description": "Adjustment to the prediction confidence between -0.15 and 0.15",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief medical reasoning (2-3 sentences)",
			},
			"alternative_diagnosis": map[string]any{
				"type":        []any{"string", "null"},
				"description": "A more likely condition, or null",
			},
		},
	},
}

type opinionOutput struct {
	Agrees      *bool    `json:"agrees"`
	Adjustment  *float64 `json:"confidence_adjustment"`
	Reasoning   *string  `json:"reasoning"`
	Alternative *string  `json:"alternative_diagnosis"`
}

// ExtractOpinion strips fences, locates the opinion object, repairs it and
// decodes it with defaults. The adjustment is clamped to ±MaxAdjustment.
// Every failure wraps ErrParse.
func ExtractOpinion(raw string) (Opinion, error) {
	text := StripFence(raw)
	obj, ok := FindObject(text)
	if !ok {
		return Opinion{}, fmt.Errorf("%w: no object with an agrees key", ErrParse)
	}
	obj = Repair(obj)

	if err := llm.ValidateJSON(OpinionSchema, json.RawMessage(obj)); err != nil {
		return Opinion{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var out opinionOutput
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return Opinion{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	op := Opinion{Agrees: true, Reasoning: DefaultReasoning}
	if out.Agrees != nil {
		op.Agrees = *out.Agrees
	}
	if out.Adjustment != nil {
		op.Delta = clampAdjustment(*out.Adjustment)
	}
	if out.Reasoning != nil && *out.Reasoning != "" {
		op.Reasoning = *out.Reasoning
	}
	if out.Alternative != nil && !noAlternative(*out.Alternative) {
		alt := strings.TrimSpace(*out.Alternative)
		op.Alternative = &alt
	}
	return op, nil
}

// noAlternative reports whether a string value stands for "no alternative".
func noAlternative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a", "nil":
		return true
	}
	return false
}

func clampAdjustment(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-MaxAdjustment, math.Min(MaxAdjustment, v))
}
