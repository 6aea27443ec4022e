package diagnosis

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/repair"
)

// ValidatorConfig holds the generation settings for validation requests.
type ValidatorConfig struct {
	MaxTokens   int
	Temperature float64

	// MaxSymptoms caps how many symptoms are listed in the prompt.
	MaxSymptoms int
}

// DefaultValidatorConfig returns the settings validation runs with when the
// provider descriptor does not override them.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxTokens:   300,
		Temperature: 0.3,
		MaxSymptoms: 10,
	}
}

// Validator asks the validate-role provider chain for an opinion about a
// classifier prediction.
type Validator struct {
	exec *chain.Executor
	cfg  ValidatorConfig
}

// NewValidator creates a Validator over the given executor.
func NewValidator(exec *chain.Executor, cfg ValidatorConfig) *Validator {
	return &Validator{exec: exec, cfg: cfg}
}

// Validation is the outcome of one validation request.
type Validation struct {
	Opinion  Opinion
	Provider string
	Model    string
	Attempts chain.AttemptLog
}

// validationInput feeds the prompt template.
type validationInput struct {
	Symptoms   []string
	Disease    string
	Confidence float64
}

// Validate requests an opinion on label at the given confidence. Provider
// answers that cannot be repaired into an opinion count as parse errors and
// the chain moves on. When every provider fails, the returned error wraps
// chain.ErrChainExhausted and the attempt log is still returned.
func (v *Validator) Validate(ctx context.Context, symptomTokens []string, label string, confidence float64) (*Validation, error) {
	listed := symptomTokens
	if v.cfg.MaxSymptoms > 0 && len(listed) > v.cfg.MaxSymptoms {
		listed = listed[:v.cfg.MaxSymptoms]
	}

	userMsg, err := buildValidationMessage(validationInput{
		Symptoms:   listed,
		Disease:    label,
		Confidence: confidence * 100,
	})
	if err != nil {
		return nil, fmt.Errorf("build validation prompt: %w", err)
	}

	req := chain.Request{
		LLM: llm.Request{
			System:      validationSystemPrompt,
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
			MaxTokens:   v.cfg.MaxTokens,
			Temperature: v.cfg.Temperature,
		},
		Schema: repair.OpinionSchema,
		Accept: func(text string) error {
			_, err := repair.ExtractOpinion(text)
			return err
		},
	}

	res, attempts, err := v.exec.Run(ctx, chain.RoleValidate, req)
	if err != nil {
		return &Validation{Opinion: NeutralOpinion(), Attempts: attempts}, err
	}

	op, err := repair.ExtractOpinion(res.Text)
	if err != nil {
		return &Validation{Opinion: NeutralOpinion(), Attempts: attempts}, err
	}
	return &Validation{
		Opinion:  op,
		Provider: res.Provider,
		Model:    res.Model,
		Attempts: attempts,
	}, nil
}

const validationSystemPrompt = `You are a medical AI assistant validating a diagnosis prediction. Respond only with the requested JSON object.`

var validationUserTemplate = template.Must(template.New("validation").Parse(`PATIENT SYMPTOMS: {{range $i, $s := .Symptoms}}{{if $i}}, {{end}}{{$s}}{{end}}

ML MODEL PREDICTION: {{.Disease}} (confidence: {{printf "%.2f" .Confidence}}%)

Your task:
1. Evaluate if the ML prediction is medically reasonable given these symptoms
2. Consider if symptoms strongly indicate this condition or if alternatives are more likely
3. Provide a confidence adjustment (-0.15 to +0.15)

Respond ONLY in this exact JSON format:
{
    "agrees": true/false,
    "confidence_adjustment": 0.0,
    "reasoning": "Brief medical reasoning (2-3 sentences)",
    "alternative_diagnosis": "Alternative condition name or null"
}

Be concise. Focus on medical accuracy.`))

func buildValidationMessage(in validationInput) (string, error) {
	var buf bytes.Buffer
	if err := validationUserTemplate.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
