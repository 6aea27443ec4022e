package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func opinionTestSchema() *Schema {
	return &Schema{
		Name:        "test-opinion",
		Description: "A second opinion on a diagnosis",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agrees":                map[string]any{"type": "boolean"},
				"confidence_adjustment": map[string]any{"type": "number"},
				"reasoning":             map[string]any{"type": "string"},
				"severity":              map[string]any{"type": "string", "enum": []any{"mild", "moderate", "severe"}},
				"alternative_diagnosis": map[string]any{"type": []any{"string", "null"}},
			},
			"required": []any{"agrees"},
		},
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"complete", `{"agrees":true,"confidence_adjustment":0.1,"reasoning":"fits","alternative_diagnosis":null}`, false},
		{"only required", `{"agrees":false}`, false},
		{"alternative string", `{"agrees":false,"alternative_diagnosis":"Dengue"}`, false},
		{"missing required", `{"reasoning":"no verdict"}`, true},
		{"wrong type", `{"agrees":"yes"}`, true},
		{"bad enum", `{"agrees":true,"severity":"extreme"}`, true},
		{"malformed", `{agrees: true}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON(opinionTestSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invErr *ErrInvalidResponse
				if !errors.As(err, &invErr) {
					t.Fatalf("expected ErrInvalidResponse, got: %T", err)
				}
			}
		})
	}
}

func TestValidateJSON_NilSchema(t *testing.T) {
	if err := ValidateJSON(nil, json.RawMessage(`not even json`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateJSON_NestedArrays(t *testing.T) {
	schema := &Schema{
		Name: "test-ranked",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"top_predictions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"disease":    map[string]any{"type": "string"},
							"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						},
						"required": []any{"disease", "confidence"},
					},
				},
			},
			"required": []any{"top_predictions"},
		},
	}

	valid := json.RawMessage(`{"top_predictions":[{"disease":"Malaria","confidence":0.6}]}`)
	if err := ValidateJSON(schema, valid); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	invalid := json.RawMessage(`{"top_predictions":[{"disease":"Malaria","confidence":1.5}]}`)
	if err := ValidateJSON(schema, invalid); err == nil {
		t.Fatal("expected error for out-of-range confidence")
	}
}
