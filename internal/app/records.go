package app

import (
	"context"

	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/store"
)

// RecordSink stores router records as symptom records.
type RecordSink struct {
	repo store.RecordRepo
}

// NewRecordSink creates a RecordSink backed by repo.
func NewRecordSink(repo store.RecordRepo) *RecordSink {
	return &RecordSink{repo: repo}
}

// PersistSymptomRecord saves rec and returns the new record ID.
func (s *RecordSink) PersistSymptomRecord(ctx context.Context, rec router.Record) (string, error) {
	sr := &store.SymptomRecord{
		SessionID:    rec.SessionID,
		Disease:      rec.Disease,
		Confidence:   rec.Confidence,
		Symptoms:     rec.Symptoms,
		Communicable: rec.Communicable,
		Acute:        rec.Acute,
		ICD10Code:    rec.ICD10Code,
		Payload:      rec.Payload,
	}
	if err := s.repo.SaveSymptomRecord(ctx, sr); err != nil {
		return "", err
	}
	return sr.ID, nil
}

// ScheduleFollowUp creates the record's pending follow-up.
func (s *RecordSink) ScheduleFollowUp(ctx context.Context, recordID string) error {
	_, err := s.repo.ScheduleFollowUp(ctx, recordID)
	return err
}
