package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/classifier"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// ErrNoSymptoms is returned when a request carries no usable symptom tokens.
var ErrNoSymptoms = errors.New("at least one symptom is required")

// Service coordinates classification and optional validation.
type Service struct {
	clf       *classifier.Classifier
	validator *Validator
}

// NewService creates a prediction service. A nil validator disables
// validation; requests asking for it get the classifier result alone.
func NewService(clf *classifier.Classifier, validator *Validator) *Service {
	return &Service{clf: clf, validator: validator}
}

// Classifier returns the underlying classifier.
func (s *Service) Classifier() *classifier.Classifier { return s.clf }

// CanValidate reports whether a validator is configured.
func (s *Service) CanValidate() bool { return s.validator != nil }

// Request is one prediction request.
type Request struct {
	Symptoms       []string `json:"symptoms"`
	WantValidation bool     `json:"want_validation"`
}

// Report is the full outcome of a prediction.
type Report struct {
	Result       *classifier.Result
	MLConfidence float64
	Confidence   float64
	LLMValidated bool
	Opinion      Opinion
	Provider     string
	Attempts     chain.AttemptLog
	Matched      []string
	Unmatched    []string
}

// Predict classifies the request's symptoms. When validation is requested
// and a validator answers, its adjustment is blended into the confidence.
// A failed validation degrades to the classifier result with the neutral
// opinion; it is never an error.
func (s *Service) Predict(ctx context.Context, req Request) (*Report, error) {
	if s.clf == nil {
		return nil, symptoms.ErrModelNotReady
	}
	set := symptoms.NewSet(req.Symptoms)
	if set.Len() == 0 {
		return nil, ErrNoSymptoms
	}

	vec, matched, unmatched, err := symptoms.Vectorize(set.Tokens(), s.clf.Vocabulary())
	if err != nil {
		return nil, err
	}
	if len(unmatched) > 0 {
		logger.Debug("unknown symptoms ignored", "unmatched", unmatched)
	}

	res, err := s.clf.Predict(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	report := &Report{
		Result:       res,
		MLConfidence: res.Confidence,
		Confidence:   res.Confidence,
		Opinion:      NeutralOpinion(),
		Matched:      matched,
		Unmatched:    unmatched,
	}

	if !req.WantValidation || s.validator == nil {
		return report, nil
	}

	v, err := s.validator.Validate(ctx, set.Tokens(), res.Label, res.Confidence)
	if v != nil {
		report.Attempts = v.Attempts
	}
	if err != nil {
		logger.Warn("validation unavailable, using classifier result", "disease", res.Label, "error", err)
		return report, nil
	}

	report.LLMValidated = true
	report.Opinion = v.Opinion
	report.Provider = v.Provider
	report.Confidence = Blend(res.Confidence, v.Opinion)
	logger.Info("prediction validated",
		"disease", res.Label,
		"ml_confidence", res.Confidence,
		"confidence", report.Confidence,
		"agrees", v.Opinion.Agrees,
		"provider", v.Provider)
	return report, nil
}
