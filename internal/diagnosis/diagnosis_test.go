package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/classifier"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/repair"
)

// Fever and cough both present: tree one votes [.6 .2 .2 0], tree two
// [.4 .2 .4 0], so Influenza .5, Dengue .3, Common Cold .2.
const testArtifact = `{
  "format_version": 2,
  "vocabulary": ["fever", "cough", "headache", "itching"],
  "model": {
    "kind": "forest",
    "classes": ["Influenza", "Common Cold", "Dengue", "Diabetes"],
    "trees": [
      {"nodes": [
        {"feature": 0, "left": 1, "right": 2},
        {"feature": -1, "value": [0, 0, 0, 1]},
        {"feature": -1, "value": [6, 2, 2, 0]}
      ]},
      {"nodes": [
        {"feature": 1, "left": 1, "right": 2},
        {"feature": -1, "value": [0, 0, 0, 1]},
        {"feature": -1, "value": [4, 2, 4, 0]}
      ]}
    ]
  }
}`

func testClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	model, vocab, err := classifier.Decode([]byte(testArtifact))
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	return classifier.New(model, vocab)
}

func validateDesc(name string, priority int) chain.Descriptor {
	return chain.Descriptor{
		Name:     name,
		Role:     chain.RoleValidate,
		Timeout:  time.Second,
		Priority: priority,
		Enabled:  true,
		Client:   llm.ClientConfig{Kind: llm.KindMock},
	}
}

func testValidator(t *testing.T, providers map[string]*llm.MockProvider, order ...string) *Validator {
	t.Helper()
	descs := make([]chain.Descriptor, len(order))
	byName := make(map[string]llm.Provider, len(providers))
	for i, name := range order {
		descs[i] = validateDesc(name, i)
		byName[name] = providers[name]
	}
	reg, err := chain.NewRegistry(descs, chain.StaticFactory(byName))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewValidator(chain.NewExecutor(reg), DefaultValidatorConfig())
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name    string
		primary float64
		op      Opinion
		want    float64
	}{
		{"boost", 0.7, Opinion{Agrees: true, Delta: 0.1}, 0.8},
		{"capped at one", 0.95, Opinion{Agrees: true, Delta: 0.15}, 1.0},
		{"floored at zero", 0.05, Opinion{Agrees: false, Delta: -0.15}, 0.0},
		{"neutral", 0.42, NeutralOpinion(), 0.42},
		{"disagreement still applies delta", 0.5, Opinion{Agrees: false, Delta: 0.1}, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blend(tt.primary, tt.op)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Blend(%v, %+v) = %v, want %v", tt.primary, tt.op, got, tt.want)
			}
		})
	}
}

func TestNeutralOpinion(t *testing.T) {
	op := NeutralOpinion()
	if !op.Agrees || op.Delta != 0 || op.Reasoning != "unavailable" || op.Alternative != nil {
		t.Fatalf("unexpected neutral opinion: %+v", op)
	}
}

func TestPredict_ClassifierOnly(t *testing.T) {
	svc := NewService(testClassifier(t), nil)

	report, err := svc.Predict(context.Background(), Request{
		Symptoms:       []string{"Fever", "cough", "headache", "chest pain"},
		WantValidation: true,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	ranked := report.Result.Ranked
	if len(ranked) == 0 || len(ranked) > classifier.TopN {
		t.Fatalf("ranked length = %d", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Confidence > ranked[i-1].Confidence {
			t.Fatalf("ranked not descending: %+v", ranked)
		}
	}
	if report.Confidence != ranked[0].Confidence {
		t.Errorf("confidence %v != top prediction %v", report.Confidence, ranked[0].Confidence)
	}
	if report.Result.Label != "Influenza" {
		t.Errorf("label = %q, want Influenza", report.Result.Label)
	}
	if report.LLMValidated {
		t.Error("expected llm_validated=false without a validator")
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0] != "chest_pain" {
		t.Errorf("unmatched = %v", report.Unmatched)
	}
}

func TestPredict_NoSymptoms(t *testing.T) {
	svc := NewService(testClassifier(t), nil)
	_, err := svc.Predict(context.Background(), Request{Symptoms: []string{" ", ""}})
	if !errors.Is(err, ErrNoSymptoms) {
		t.Fatalf("err = %v, want ErrNoSymptoms", err)
	}
}

func TestPredict_ValidatedBlends(t *testing.T) {
	groq := llm.NewMockProvider(llm.MockText(`{"agrees": true, "confidence_adjustment": 0.1, "reasoning": "Fever with cough fits influenza."}`))
	svc := NewService(testClassifier(t), testValidator(t, map[string]*llm.MockProvider{"groq": groq}, "groq"))

	report, err := svc.Predict(context.Background(), Request{
		Symptoms:       []string{"fever", "cough", "headache"},
		WantValidation: true,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !report.LLMValidated || report.Provider != "groq" {
		t.Fatalf("expected validation by groq, got %+v", report)
	}
	if math.Abs(report.Confidence-(report.MLConfidence+0.1)) > 1e-9 {
		t.Errorf("confidence = %v, want ml %v + 0.1", report.Confidence, report.MLConfidence)
	}

	resp := report.Response()
	if resp.Validation == nil || resp.Validation.ConfidenceBoost != 0.1 {
		t.Fatalf("validation block = %+v", resp.Validation)
	}
	if resp.Validation.Alternative != nil {
		t.Errorf("alternative = %v, want nil", *resp.Validation.Alternative)
	}
}

func TestPredict_UnparseableOpinionFallsThrough(t *testing.T) {
	providers := map[string]*llm.MockProvider{
		"groq":   llm.NewMockProvider(llm.MockText("I think it's probably the flu.")),
		"gemini": llm.NewMockProvider(llm.MockText("```json\n{\"agrees\": false, \"confidence_adjustment\": -0.1, \"alternative_diagnosis\": \"Dengue\"}\n```")),
	}
	svc := NewService(testClassifier(t), testValidator(t, providers, "groq", "gemini"))

	report, err := svc.Predict(context.Background(), Request{Symptoms: []string{"fever", "cough"}, WantValidation: true})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	got := report.Attempts.Outcomes()
	if len(got) != 2 || got[0] != chain.OutcomeParseError || got[1] != chain.OutcomeSuccess {
		t.Fatalf("outcomes = %v", got)
	}
	if report.Provider != "gemini" || report.Opinion.Agrees {
		t.Fatalf("unexpected opinion: %+v", report.Opinion)
	}
	if report.Opinion.Alternative == nil || *report.Opinion.Alternative != "Dengue" {
		t.Fatalf("alternative = %v", report.Opinion.Alternative)
	}
}

func TestPredict_ValidationExhaustedDegrades(t *testing.T) {
	providers := map[string]*llm.MockProvider{
		"groq":   llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection reset")}),
		"gemini": llm.NewMockProvider(llm.MockText("")),
	}
	svc := NewService(testClassifier(t), testValidator(t, providers, "groq", "gemini"))

	report, err := svc.Predict(context.Background(), Request{Symptoms: []string{"fever"}, WantValidation: true})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if report.LLMValidated {
		t.Fatal("expected llm_validated=false")
	}
	if report.Confidence != report.MLConfidence {
		t.Errorf("confidence %v changed from ml %v", report.Confidence, report.MLConfidence)
	}
	if report.Opinion.Reasoning != NeutralReasoning {
		t.Errorf("opinion = %+v, want neutral", report.Opinion)
	}
	if len(report.Attempts) != 2 {
		t.Errorf("attempts = %v", report.Attempts)
	}
	if report.Response().Validation != nil {
		t.Error("validation block must be omitted when no validator answered")
	}
}

func TestPredict_SkipsValidationWhenNotRequested(t *testing.T) {
	groq := llm.NewMockProvider(llm.MockText(`{"agrees": true}`))
	svc := NewService(testClassifier(t), testValidator(t, map[string]*llm.MockProvider{"groq": groq}, "groq"))

	if _, err := svc.Predict(context.Background(), Request{Symptoms: []string{"fever"}}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if groq.CallCount() != 0 {
		t.Fatalf("validator called %d times", groq.CallCount())
	}
}

func TestValidate_Prompt(t *testing.T) {
	groq := llm.NewMockProvider(llm.MockText(`{"agrees": true}`))
	v := testValidator(t, map[string]*llm.MockProvider{"groq": groq}, "groq")

	var many []string
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		many = append(many, "symptom_"+s)
	}
	if _, err := v.Validate(context.Background(), many, "Malaria", 0.725); err != nil {
		t.Fatalf("validate: %v", err)
	}

	call := groq.Calls[0]
	if call.MaxTokens != 300 || call.Temperature != 0.3 {
		t.Errorf("generation settings = %d/%v", call.MaxTokens, call.Temperature)
	}
	msg := call.Messages[0].Content
	for _, want := range []string{
		"PATIENT SYMPTOMS: symptom_a, symptom_b",
		"ML MODEL PREDICTION: Malaria (confidence: 72.50%)",
		`"confidence_adjustment": 0.0`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "symptom_k") {
		t.Error("prompt should list at most 10 symptoms")
	}
}

func TestValidate_SchemaForStructuredKinds(t *testing.T) {
	gemini := llm.NewMockProvider(llm.MockText(`{"agrees": false, "confidence_adjustment": -0.1}`))
	groq := llm.NewMockProvider(llm.MockText(`{"agrees": true}`))

	structured := validateDesc("gemini", 0)
	structured.Client.Kind = llm.KindGemini
	reg, err := chain.NewRegistry([]chain.Descriptor{structured, validateDesc("groq", 1)},
		chain.StaticFactory(map[string]llm.Provider{"gemini": gemini, "groq": groq}))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	v := NewValidator(chain.NewExecutor(reg), DefaultValidatorConfig())

	val, err := v.Validate(context.Background(), []string{"fever"}, "Malaria", 0.7)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if val.Provider != "gemini" || val.Opinion.Agrees {
		t.Fatalf("unexpected validation %+v", val)
	}
	if gemini.Calls[0].Schema != repair.OpinionSchema {
		t.Errorf("gemini request schema = %v, want the opinion schema", gemini.Calls[0].Schema)
	}
	if groq.CallCount() != 0 {
		t.Errorf("groq should not be called after gemini answered")
	}
}

func TestResponse_JSONFields(t *testing.T) {
	svc := NewService(testClassifier(t), nil)
	report, err := svc.Predict(context.Background(), Request{Symptoms: []string{"fever", "cough"}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	raw, err := json.Marshal(report.Response())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"predicted_disease", "confidence", "ml_confidence", "llm_validated",
		"top_predictions", "communicable", "acute", "code"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, raw)
		}
	}
	if _, ok := fields["validation"]; ok {
		t.Error("validation must be omitted when not validated")
	}
	top := fields["top_predictions"].([]any)[0].(map[string]any)
	if top["disease"] != "Influenza" {
		t.Errorf("top prediction = %v", top)
	}
}
