package diagnosis

import "github.com/souchan25/virtualHealthAssistant/internal/classifier"

// Response is the JSON shape of a prediction.
type Response struct {
	PredictedDisease  string                  `json:"predicted_disease"`
	Confidence        float64                 `json:"confidence"`
	MLConfidence      float64                 `json:"ml_confidence"`
	LLMValidated      bool                    `json:"llm_validated"`
	TopPredictions    []classifier.Prediction `json:"top_predictions"`
	Communicable      bool                    `json:"communicable"`
	Acute             bool                    `json:"acute"`
	Code              string                  `json:"code"`
	Approximate       bool                    `json:"approximate,omitempty"`
	Description       string                  `json:"description,omitempty"`
	Precautions       []string                `json:"precautions,omitempty"`
	MatchedSymptoms   []string                `json:"matched_symptoms"`
	UnmatchedSymptoms []string                `json:"unmatched_symptoms"`
	Provider          string                  `json:"provider,omitempty"`
	Validation        *ValidationResponse     `json:"validation,omitempty"`
}

// ValidationResponse is the JSON shape of a validator opinion.
type ValidationResponse struct {
	Agrees          bool    `json:"agrees"`
	Reasoning       string  `json:"reasoning"`
	ConfidenceBoost float64 `json:"confidence_boost"`
	Alternative     *string `json:"alternative"`
}

// Response converts the report to its JSON shape. The validation block is
// present only when a validator answered.
func (r *Report) Response() Response {
	resp := Response{
		PredictedDisease:  r.Result.Label,
		Confidence:        r.Confidence,
		MLConfidence:      r.MLConfidence,
		LLMValidated:      r.LLMValidated,
		TopPredictions:    r.Result.Ranked,
		Communicable:      r.Result.Tags.Communicable,
		Acute:             r.Result.Tags.Acute,
		Code:              r.Result.Tags.Code,
		Approximate:       r.Result.Approximate,
		Description:       r.Result.Description,
		Precautions:       r.Result.Precautions,
		MatchedSymptoms:   nonNil(r.Matched),
		UnmatchedSymptoms: nonNil(r.Unmatched),
		Provider:          r.Provider,
	}
	if r.LLMValidated {
		resp.Validation = &ValidationResponse{
			Agrees:          r.Opinion.Agrees,
			Reasoning:       r.Opinion.Reasoning,
			ConfidenceBoost: r.Opinion.Delta,
			Alternative:     r.Opinion.Alternative,
		}
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
