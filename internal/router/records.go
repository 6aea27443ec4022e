package router

import (
	"context"
	"encoding/json"

	"github.com/souchan25/virtualHealthAssistant/internal/logger"
)

// dialogueDiagnosis is the diagnosis block a dialogue action attaches to
// its custom payload.
type dialogueDiagnosis struct {
	PredictedDisease string   `json:"predicted_disease"`
	Confidence       float64  `json:"confidence"`
	Symptoms         []string `json:"symptoms"`
	IsCommunicable   bool     `json:"is_communicable"`
	IsAcute          bool     `json:"is_acute"`
	ICD10Code        string   `json:"icd10_code"`
}

// recordDiagnosis persists the diagnosis and schedules its follow-up in the
// background. Failures are logged and never reach the caller.
func (r *Router) recordDiagnosis(ctx context.Context, sessionID string, raw json.RawMessage) {
	if r.sink == nil {
		return
	}
	var dx dialogueDiagnosis
	if err := json.Unmarshal(raw, &dx); err != nil {
		logger.Warn("ignoring malformed dialogue diagnosis", "session", sessionID, "error", err)
		return
	}
	if dx.PredictedDisease == "" {
		return
	}

	rec := Record{
		SessionID:    sessionID,
		Disease:      dx.PredictedDisease,
		Confidence:   dx.Confidence,
		Symptoms:     dx.Symptoms,
		Communicable: dx.IsCommunicable,
		Acute:        dx.IsAcute,
		ICD10Code:    dx.ICD10Code,
		Payload:      append(json.RawMessage(nil), raw...),
	}

	// The turn's context ends with the request; record keeping outlives it.
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(bg, recordTimeout)
		defer cancel()

		id, err := r.sink.PersistSymptomRecord(ctx, rec)
		if err != nil {
			logger.Warn("persist symptom record failed", "session", sessionID, "disease", rec.Disease, "error", err)
			return
		}
		if err := r.sink.ScheduleFollowUp(ctx, id); err != nil {
			logger.Warn("schedule follow-up failed", "record", id, "error", err)
			return
		}
		logger.Debug("symptom record saved", "record", id, "disease", rec.Disease)
	}()
}
