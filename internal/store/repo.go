package store

import (
	"context"
	"encoding/json"
	"time"
)

// FollowUpDelay is how long after a symptom record its follow-up falls due.
const FollowUpDelay = 72 * time.Hour

// Follow-up statuses.
const (
	FollowUpPending   = "pending"
	FollowUpCompleted = "completed"
)

// QueryOpts configures queries with filtering and pagination.
type QueryOpts struct {
	Limit    int       // max results (0 = unlimited)
	After    int64     // sequence > After
	Before   int64     // sequence < Before
	From     time.Time // timestamp >= From
	To       time.Time // timestamp <= To
	Purpose  string    // LLM events only
	Provider string    // LLM events only
	Session  string    // symptom records only
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// UsageStat aggregates LLM usage for one group key.
type UsageStat struct {
	Key          string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates usage per purpose label.
	LLMUsageByPurpose(ctx context.Context) ([]UsageStat, error)

	// LLMUsageByModel aggregates usage per model.
	LLMUsageByModel(ctx context.Context) ([]UsageStat, error)

	// LLMUsageByProvider aggregates usage per configured provider entry.
	LLMUsageByProvider(ctx context.Context) ([]UsageStat, error)
}

// SymptomRecord is a persisted diagnosis accepted from a chat turn or a
// prediction request.
type SymptomRecord struct {
	ID           string
	Sequence     int64
	SessionID    string
	Disease      string
	Confidence   float64
	Symptoms     []string
	Communicable bool
	Acute        bool
	ICD10Code    string
	Payload      json.RawMessage
	CreatedAt    time.Time
}

// FollowUp is a scheduled check-in for a symptom record.
type FollowUp struct {
	ID        string
	RecordID  string
	DueAt     time.Time
	Status    string
	CreatedAt time.Time
}

// RecordRepo manages symptom records and their follow-ups.
type RecordRepo interface {
	// SaveSymptomRecord stores rec, assigning ID, Sequence and CreatedAt
	// when empty.
	SaveSymptomRecord(ctx context.Context, rec *SymptomRecord) error

	// GetSymptomRecord returns a record, or nil if it does not exist.
	GetSymptomRecord(ctx context.Context, id string) (*SymptomRecord, error)

	// ListSymptomRecords returns records newest first.
	ListSymptomRecords(ctx context.Context, opts QueryOpts) ([]SymptomRecord, error)

	// ScheduleFollowUp creates a pending follow-up due FollowUpDelay after
	// the record was created.
	ScheduleFollowUp(ctx context.Context, recordID string) (*FollowUp, error)

	// ListFollowUps returns follow-ups due at or before dueBy (all when
	// zero), earliest first.
	ListFollowUps(ctx context.Context, dueBy time.Time) ([]FollowUp, error)

	// CompleteFollowUp marks a follow-up as completed.
	CompleteFollowUp(ctx context.Context, id string) error
}
