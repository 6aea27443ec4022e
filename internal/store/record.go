package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const (
	symptomRecordsTable = "symptom_records"
	followUpsTable      = "follow_ups"
)

var symptomRecordColumns = []string{
	"id", "sequence", "session_id", "disease", "confidence", "symptoms",
	"communicable", "acute", "icd10_code", "payload", "created_at",
}

var followUpColumns = []string{"id", "record_id", "due_at", "status", "created_at"}

type recordRepo struct {
	store *Store
}

func (r *recordRepo) SaveSymptomRecord(ctx context.Context, rec *SymptomRecord) error {
	if rec.Disease == "" {
		return fmt.Errorf("symptom record requires a disease")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.store.now().UTC()
	}
	if rec.Sequence == 0 {
		seq, err := r.store.seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		rec.Sequence = seq
	}

	symptomsJSON, err := json.Marshal(nonNil(rec.Symptoms))
	if err != nil {
		return fmt.Errorf("encode symptoms: %w", err)
	}

	query, args := builder().Insert(symptomRecordsTable).
		Columns(symptomRecordColumns...).
		Values(rec.ID, rec.Sequence, rec.SessionID, rec.Disease, rec.Confidence, string(symptomsJSON),
			boolInt(rec.Communicable), boolInt(rec.Acute), rec.ICD10Code, string(rec.Payload),
			toMillis(rec.CreatedAt)).
		Query()

	if _, err := r.store.drv.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save symptom record: %w", err)
	}
	return nil
}

func (r *recordRepo) GetSymptomRecord(ctx context.Context, id string) (*SymptomRecord, error) {
	query, args := builder().Select(symptomRecordColumns...).
		From(entsql.Table(symptomRecordsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	rows, err := r.store.drv.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get symptom record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSymptomRecord(rows)
}

func (r *recordRepo) ListSymptomRecords(ctx context.Context, opts QueryOpts) ([]SymptomRecord, error) {
	sel := builder().Select(symptomRecordColumns...).From(entsql.Table(symptomRecordsTable))
	applyOpts(sel, opts, "created_at")
	if opts.Session != "" {
		sel.Where(entsql.EQ("session_id", opts.Session))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.store.drv.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list symptom records: %w", err)
	}
	defer rows.Close()

	var out []SymptomRecord
	for rows.Next() {
		rec, err := scanSymptomRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *recordRepo) ScheduleFollowUp(ctx context.Context, recordID string) (*FollowUp, error) {
	rec, err := r.GetSymptomRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("symptom record %s not found", recordID)
	}

	f := &FollowUp{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		DueAt:     rec.CreatedAt.Add(FollowUpDelay),
		Status:    FollowUpPending,
		CreatedAt: r.store.now().UTC(),
	}

	query, args := builder().Insert(followUpsTable).
		Columns(followUpColumns...).
		Values(f.ID, f.RecordID, toMillis(f.DueAt), f.Status, toMillis(f.CreatedAt)).
		Query()

	if _, err := r.store.drv.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("save follow-up: %w", err)
	}
	return f, nil
}

func (r *recordRepo) ListFollowUps(ctx context.Context, dueBy time.Time) ([]FollowUp, error) {
	sel := builder().Select(followUpColumns...).From(entsql.Table(followUpsTable))
	if !dueBy.IsZero() {
		sel.Where(entsql.LTE("due_at", toMillis(dueBy)))
	}
	sel.OrderBy("due_at")

	query, args := sel.Query()
	rows, err := r.store.drv.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		var due, created int64
		if err := rows.Scan(&f.ID, &f.RecordID, &due, &f.Status, &created); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		f.DueAt = fromMillis(due)
		f.CreatedAt = fromMillis(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *recordRepo) CompleteFollowUp(ctx context.Context, id string) error {
	query, args := builder().Update(followUpsTable).
		Set("status", FollowUpCompleted).
		Where(entsql.EQ("id", id)).
		Query()

	res, err := r.store.drv.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete follow-up: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("follow-up %s not found", id)
	}
	return nil
}

func scanSymptomRecord(rows *sql.Rows) (*SymptomRecord, error) {
	var rec SymptomRecord
	var symptomsJSON, payload string
	var communicable, acute int
	var created int64
	err := rows.Scan(&rec.ID, &rec.Sequence, &rec.SessionID, &rec.Disease, &rec.Confidence,
		&symptomsJSON, &communicable, &acute, &rec.ICD10Code, &payload, &created)
	if err != nil {
		return nil, fmt.Errorf("scan symptom record: %w", err)
	}
	if err := json.Unmarshal([]byte(symptomsJSON), &rec.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if payload != "" {
		rec.Payload = json.RawMessage(payload)
	}
	rec.Communicable = communicable != 0
	rec.Acute = acute != 0
	rec.CreatedAt = fromMillis(created)
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
