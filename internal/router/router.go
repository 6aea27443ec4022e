// Package router decides, per chat turn, whether the dialogue engine's reply
// can be returned as is or the turn must be answered by the generative
// provider chain.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
)

// ReferralSentence is returned when neither the dialogue engine nor any
// generative provider produced an answer.
const ReferralSentence = "Thank you for your message. Based on your symptoms, I recommend consulting with our clinic staff for proper evaluation."

const (
	DefaultThreshold       = 0.6
	DefaultDialogueTimeout = 60 * time.Second

	// recordTimeout bounds background record persistence.
	recordTimeout = 10 * time.Second
)

// GenericReplies are dialogue answers that carry no information. They are
// compared case-insensitively after trimming.
var GenericReplies = []string{"sorry", "i'm not sure", "i don't understand"}

// ErrEmptyMessage is returned for a turn without message text.
var ErrEmptyMessage = errors.New("message is required")

// State is a step of the routing state machine.
type State string

const (
	StateRouteToDialogue    State = "ROUTE_TO_DIALOGUE"
	StateEvaluateTrust      State = "EVALUATE_TRUST"
	StateAcceptDialogue     State = "ACCEPT_DIALOGUE_RESPONSE"
	StateGenerativeFallback State = "GENERATIVE_FALLBACK"
)

// Source names who answered a turn.
type Source string

const (
	SourceDialogue Source = "dialogue"
	SourceFallback Source = "fallback"
)

// Dialogue is the dialogue engine as seen by the router.
type Dialogue interface {
	Send(ctx context.Context, sender, message string, metadata map[string]any) (*dialogue.Reply, error)
}

// Fallback answers turns the dialogue engine could not. *chain.Executor
// satisfies it.
type Fallback interface {
	Run(ctx context.Context, role chain.Role, req chain.Request) (chain.Result, chain.AttemptLog, error)
}

// Record is the symptom record derived from an accepted dialogue reply.
type Record struct {
	SessionID    string
	Disease      string
	Confidence   float64
	Symptoms     []string
	Communicable bool
	Acute        bool
	ICD10Code    string
	Payload      json.RawMessage
}

// RecordSink persists records and schedules their follow-ups.
type RecordSink interface {
	PersistSymptomRecord(ctx context.Context, rec Record) (string, error)
	ScheduleFollowUp(ctx context.Context, recordID string) error
}

// Config tunes routing.
type Config struct {
	DialogueEnabled bool
	DialogueTimeout time.Duration
	Threshold       float64

	// Generation settings for fallback requests.
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the routing defaults.
func DefaultConfig() Config {
	return Config{
		DialogueEnabled: true,
		DialogueTimeout: DefaultDialogueTimeout,
		Threshold:       DefaultThreshold,
		MaxTokens:       500,
		Temperature:     0.7,
	}
}

// Turn is one incoming chat message.
type Turn struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Language  string `json:"language"`
}

// Decision is the outcome of routing one turn.
type Decision struct {
	Text      string
	Source    Source
	Trusted   bool
	Buttons   []dialogue.Button
	Custom    map[string]json.RawMessage
	Diagnosis json.RawMessage

	// States lists the visited states in order.
	States []State

	// Reason explains why the dialogue reply was not trusted.
	Reason string

	DialogueConfidence float64
	Provider           string
	Attempts           chain.AttemptLog
}

// Router routes chat turns. It is safe for concurrent use.
type Router struct {
	dlg  Dialogue
	fb   Fallback
	sink RecordSink
	cfg  Config

	wg sync.WaitGroup
}

// New creates a Router. dlg and sink may be nil: a nil dialogue engine
// sends every turn to the fallback and a nil sink skips record keeping.
func New(dlg Dialogue, fb Fallback, sink RecordSink, cfg Config) *Router {
	return &Router{dlg: dlg, fb: fb, sink: sink, cfg: cfg}
}

// Handle routes one turn. It only fails for an invalid turn; every other
// problem degrades to the fallback and finally to ReferralSentence.
func (r *Router) Handle(ctx context.Context, turn Turn) (*Decision, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, ErrEmptyMessage
	}

	d := &Decision{}
	if !r.cfg.DialogueEnabled || r.dlg == nil {
		d.Reason = "dialogue engine disabled"
		r.fallback(ctx, turn, d)
		return d, nil
	}

	d.States = append(d.States, StateRouteToDialogue)
	reply, err := r.askDialogue(ctx, turn)

	d.States = append(d.States, StateEvaluateTrust)
	if reason := r.untrusted(reply, err); reason != "" {
		d.Reason = reason
		if reply != nil {
			d.DialogueConfidence = reply.Confidence
		}
		logger.Info("dialogue reply not trusted, using fallback", "session", turn.SessionID, "reason", reason)
		r.fallback(ctx, turn, d)
		return d, nil
	}

	d.States = append(d.States, StateAcceptDialogue)
	d.Text = reply.Text
	d.Source = SourceDialogue
	d.Trusted = true
	d.Buttons = reply.Buttons
	d.Custom = reply.Custom
	d.DialogueConfidence = reply.Confidence
	if raw, ok := reply.Custom["diagnosis"]; ok {
		d.Diagnosis = raw
		r.recordDiagnosis(ctx, turn.SessionID, raw)
	}
	return d, nil
}

func (r *Router) askDialogue(ctx context.Context, turn Turn) (*dialogue.Reply, error) {
	timeout := r.cfg.DialogueTimeout
	if timeout <= 0 {
		timeout = DefaultDialogueTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	meta := map[string]any{"session_id": turn.SessionID}
	if turn.Language != "" {
		meta["language"] = turn.Language
	}
	return r.dlg.Send(ctx, turn.SessionID, turn.Message, meta)
}

// untrusted returns why a reply must not be used, or "" when it can be.
func (r *Router) untrusted(reply *dialogue.Reply, err error) string {
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) {
			return "dialogue engine timed out"
		}
		return fmt.Sprintf("dialogue engine failed: %v", err)
	case reply == nil:
		return "no dialogue reply"
	case reply.Confidence < r.cfg.Threshold:
		return fmt.Sprintf("confidence %.2f below threshold %.2f", reply.Confidence, r.cfg.Threshold)
	}
	text := strings.ToLower(strings.TrimSpace(reply.Text))
	if text == "" {
		return "empty dialogue reply"
	}
	for _, g := range GenericReplies {
		if text == g {
			return "generic dialogue reply"
		}
	}
	return ""
}

func (r *Router) fallback(ctx context.Context, turn Turn, d *Decision) {
	d.States = append(d.States, StateGenerativeFallback)
	d.Source = SourceFallback
	d.Trusted = false

	if r.fb == nil {
		d.Text = ReferralSentence
		return
	}

	res, attempts, err := r.fb.Run(ctx, chain.RoleChat, chain.Request{LLM: r.chatRequest(turn)})
	d.Attempts = attempts
	if err != nil {
		logger.Warn("chat fallback exhausted, returning referral", "session", turn.SessionID, "error", err)
		d.Text = ReferralSentence
		return
	}
	d.Text = res.Text
	d.Provider = res.Provider
}

func (r *Router) chatRequest(turn Turn) llm.Request {
	msg := turn.Message
	if turn.Language != "" {
		msg += "\n\nPreferred language: " + turn.Language
	}
	return llm.Request{
		System:      chatSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: msg}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}
}

const chatSystemPrompt = `You are a compassionate health assistant for CPSU (Central Philippines State University) students.

Guidelines:
- Provide supportive, empathetic health guidance
- Support English, Filipino, and local Philippine dialects
- Always recommend seeing clinic staff for serious concerns
- Keep responses concise and actionable
- Be culturally sensitive to Filipino students
- Never diagnose - only provide general health information`

// Wait blocks until background record keeping has finished.
func (r *Router) Wait() { r.wg.Wait() }
