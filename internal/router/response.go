package router

import (
	"encoding/json"

	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
)

// Response is the JSON shape of a routed turn.
type Response struct {
	ResponseText string            `json:"response_text"`
	Source       Source            `json:"source"`
	Trusted      bool              `json:"trusted"`
	SessionID    string            `json:"session_id,omitempty"`
	Buttons      []dialogue.Button `json:"buttons"`
	Diagnosis    json.RawMessage   `json:"diagnosis,omitempty"`
}

// Response converts the decision for the given session.
func (d *Decision) Response(sessionID string) Response {
	buttons := d.Buttons
	if buttons == nil {
		buttons = []dialogue.Button{}
	}
	return Response{
		ResponseText: d.Text,
		Source:       d.Source,
		Trusted:      d.Trusted,
		SessionID:    sessionID,
		Buttons:      buttons,
		Diagnosis:    d.Diagnosis,
	}
}
