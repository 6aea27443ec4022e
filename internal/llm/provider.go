package llm

import (
	"bytes"
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate with a Request and receive the model's text,
// or structured JSON when a Schema is set.
type Provider interface {
	// Generate sends a prompt to the LLM and returns a structured response.
	// The request's Schema field, when set, instructs the provider to return
	// JSON conforming to that schema. The response Content will be the
	// validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history. Validation and chat fallback
	// both send a single user message.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When set, the provider uses its native structured output mechanism.
	// When nil, the response Content is raw text as json.RawMessage.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response. Zero leaves
	// the choice to the chain entry or the vendor.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0. Zero means unset:
	// the chain entry's temperature applies, and adapters then omit the
	// field so the vendor default is used. An explicit 0.0 cannot be
	// requested.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (used as tool name for Anthropic,
	// schema name for OpenAI). Kebab-case, e.g. "diagnosis-opinion".
	Name string

	// Description is a human-readable description of what this schema
	// represents. Sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated output. When a Schema was provided in the
	// request, this is the validated JSON object. Otherwise it holds the
	// model's raw text bytes, which need not be valid JSON.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped. One of StopEnd or
	// StopMaxTokens.
	StopReason string
}

// Normalized stop reasons.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
)

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Text returns Content as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

// Empty reports whether the response carries no text.
func (r *Response) Empty() bool {
	return r == nil || len(bytes.TrimSpace(r.Content)) == 0
}

// checkContent applies the request's output constraints to a vendor answer.
// A blank answer is returned as is so the chain can record it as empty. With
// a Schema set, a truncated answer fails with ErrMaxTokensExceeded and a
// non-conforming one with ErrInvalidResponse.
func checkContent(req Request, resp *Response) (*Response, error) {
	if req.Schema == nil || resp.Empty() {
		return resp, nil
	}
	if resp.StopReason == StopMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: resp.Content}
	}
	if err := ValidateJSON(req.Schema, resp.Content); err != nil {
		return nil, err
	}
	return resp, nil
}
