// Package dialogue is a client for the clinic's dialogue engine, a Rasa
// server reached over its REST channel.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL      = "http://localhost:5005"
	DefaultProbeTimeout = 2 * time.Second
)

// ErrEmptyReply is returned when the engine answered with no messages,
// which usually means no trained model is loaded.
var ErrEmptyReply = errors.New("dialogue engine returned no messages")

// Button is a quick-reply option attached to a reply.
type Button struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Reply is the combined answer to one message.
type Reply struct {
	Text       string
	Buttons    []Button
	Custom     map[string]json.RawMessage
	Confidence float64
}

// Event is one entry of a conversation tracker.
type Event struct {
	Event     string  `json:"event"`
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text,omitempty"`
}

// Client talks to one dialogue engine. It is safe for concurrent use.
type Client struct {
	client       *http.Client
	baseURL      string
	probeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithProbeTimeout sets the budget for Status probes.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probeTimeout = d }
}

// New creates a client for the engine at baseURL. Request deadlines come
// from the caller's context.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		client:       &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the engine address.
func (c *Client) BaseURL() string { return c.baseURL }

type webhookRequest struct {
	Sender   string         `json:"sender"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type webhookMessage struct {
	RecipientID string                     `json:"recipient_id"`
	Text        *string                    `json:"text"`
	Buttons     []Button                   `json:"buttons"`
	Custom      map[string]json.RawMessage `json:"custom"`
	JSONMessage map[string]json.RawMessage `json:"json_message"`
	Confidence  *float64                   `json:"confidence"`
}

// Send posts a message for the given sender. Texts of every returned
// message are joined with a space, buttons are concatenated and custom
// payloads merged. Confidence comes from the first message and defaults
// to 1.0.
func (c *Client) Send(ctx context.Context, sender, message string, metadata map[string]any) (*Reply, error) {
	body, err := json.Marshal(webhookRequest{Sender: sender, Message: message, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks/rest/webhook", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("dialogue engine error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var msgs []webhookMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrEmptyReply
	}
	return combine(msgs), nil
}

func combine(msgs []webhookMessage) *Reply {
	r := &Reply{Confidence: 1.0}
	if msgs[0].Confidence != nil {
		r.Confidence = *msgs[0].Confidence
	}

	var texts []string
	for _, m := range msgs {
		if m.Text != nil {
			texts = append(texts, *m.Text)
		}
		r.Buttons = append(r.Buttons, m.Buttons...)
		for _, src := range []map[string]json.RawMessage{m.Custom, m.JSONMessage} {
			for k, v := range src {
				if r.Custom == nil {
					r.Custom = make(map[string]json.RawMessage)
				}
				r.Custom[k] = v
			}
		}
	}
	r.Text = strings.Join(texts, " ")
	return r
}

// Status probes the engine's /status endpoint under the probe timeout. A
// nil error means the engine is up.
func (c *Client) Status(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe dialogue engine: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dialogue engine status %d", resp.StatusCode)
	}
	return nil
}

// History returns the tracker events recorded for a sender.
func (c *Client) History(ctx context.Context, sender string) ([]Event, error) {
	endpoint := c.baseURL + "/conversations/" + url.PathEscape(sender) + "/tracker"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tracker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dialogue engine tracker status %d", resp.StatusCode)
	}

	var tracker struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tracker); err != nil {
		return nil, fmt.Errorf("decode tracker: %w", err)
	}
	return tracker.Events, nil
}
