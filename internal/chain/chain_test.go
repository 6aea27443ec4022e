package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souchan25/virtualHealthAssistant/internal/llm"
)

type panicProvider struct{}

func (panicProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	panic("boom")
}

func (panicProvider) ModelID() string { return "panic" }

func desc(name string, priority int) Descriptor {
	return Descriptor{
		Name:     name,
		Role:     RoleChat,
		Timeout:  time.Second,
		Priority: priority,
		Enabled:  true,
		Client:   llm.ClientConfig{Kind: llm.KindMock},
	}
}

func newExecutor(t *testing.T, descs []Descriptor, providers map[string]llm.Provider, opts ...Option) *Executor {
	t.Helper()
	reg, err := NewRegistry(descs, StaticFactory(providers))
	require.NoError(t, err)
	return NewExecutor(reg, opts...)
}

func chatRequest() Request {
	return Request{LLM: llm.Request{
		System:   "You are a health assistant.",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "I have a headache"}},
	}}
}

func TestRegistry_OrdersByPriorityThenName(t *testing.T) {
	disabled := desc("disabled", 0)
	disabled.Enabled = false
	validate := desc("validator", 0)
	validate.Role = RoleValidate

	reg, err := NewRegistry([]Descriptor{desc("c", 2), desc("b", 1), desc("a", 1), disabled, validate}, nil)
	require.NoError(t, err)

	var names []string
	for _, d := range reg.Providers(RoleChat) {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, 1, reg.Len(RoleValidate))
}

func TestRegistry_RejectsBadDescriptors(t *testing.T) {
	noTimeout := desc("x", 0)
	noTimeout.Timeout = 0
	badRole := desc("y", 0)
	badRole.Role = "triage"

	tests := []struct {
		name  string
		descs []Descriptor
	}{
		{"duplicate", []Descriptor{desc("a", 0), desc("a", 1)}},
		{"no name", []Descriptor{desc("", 0)}},
		{"no timeout", []Descriptor{noTimeout}},
		{"bad role", []Descriptor{badRole}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.descs, nil)
			assert.Error(t, err)
		})
	}
}

func TestRun_FirstSuccessShortCircuits(t *testing.T) {
	first := llm.NewMockProvider(llm.MockText("Please rest and drink water."))
	second := llm.NewMockProvider(llm.MockText("unused"))
	x := newExecutor(t, []Descriptor{desc("gemini", 0), desc("groq", 1)},
		map[string]llm.Provider{"gemini": first, "groq": second})

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, "Please rest and drink water.", res.Text)
	assert.Equal(t, []Outcome{OutcomeSuccess}, log.Outcomes())
	assert.Equal(t, 0, second.CallCount())
}

func TestRun_FallsThroughFailures(t *testing.T) {
	timeoutDesc := desc("slow", 1)
	timeoutDesc.Timeout = 10 * time.Millisecond

	providers := map[string]llm.Provider{
		"broken": llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection refused")}),
		"slow":   llm.NewMockProvider(llm.MockResponse{Content: []byte("late"), Delay: time.Second}),
		"blank":  llm.NewMockProvider(llm.MockText("   ")),
		"panics": panicProvider{},
		"good":   llm.NewMockProvider(llm.MockText("ok")),
	}
	x := newExecutor(t, []Descriptor{desc("broken", 0), timeoutDesc, desc("blank", 2), desc("panics", 3), desc("good", 4)}, providers)

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "good", res.Provider)
	assert.Equal(t, []Outcome{
		OutcomeTransportError, OutcomeTimeout, OutcomeEmpty, OutcomeTransportError, OutcomeSuccess,
	}, log.Outcomes())
	assert.Contains(t, log[3].Error, "panicked")
	assert.Equal(t, "broken:transport_error slow:timeout blank:empty panics:transport_error good:success", log.String())
}

func TestRun_AcceptRejectionIsParseError(t *testing.T) {
	providers := map[string]llm.Provider{
		"groq":   llm.NewMockProvider(llm.MockText("not json at all")),
		"gemini": llm.NewMockProvider(llm.MockText(`{"agrees": true}`)),
	}
	x := newExecutor(t, []Descriptor{desc("groq", 0), desc("gemini", 1)}, providers)

	req := chatRequest()
	req.Accept = func(text string) error {
		if text[0] != '{' {
			return errors.New("no object")
		}
		return nil
	}
	res, log, err := x.Run(context.Background(), RoleChat, req)
	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, []Outcome{OutcomeParseError, OutcomeSuccess}, log.Outcomes())
}

func TestRun_ExhaustedReturnsNoText(t *testing.T) {
	providers := map[string]llm.Provider{
		"a": llm.NewMockProvider(llm.MockResponse{Err: errors.New("503")}),
		"b": llm.NewMockProvider(llm.MockText("")),
	}
	x := newExecutor(t, []Descriptor{desc("a", 0), desc("b", 1)}, providers)

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Empty(t, res.Text)
	assert.Len(t, log, 2)
}

func TestRun_EmptyRoleIsExhausted(t *testing.T) {
	x := newExecutor(t, []Descriptor{desc("a", 0)}, map[string]llm.Provider{"a": llm.NewMockProvider()})
	_, log, err := x.Run(context.Background(), RoleValidate, chatRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Empty(t, log)
}

func TestRun_CancelledContextInvokesNothing(t *testing.T) {
	p := llm.NewMockProvider(llm.MockText("hi"))
	x := newExecutor(t, []Descriptor{desc("a", 0)}, map[string]llm.Provider{"a": p})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, log, err := x.Run(ctx, RoleChat, chatRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log)
	assert.Equal(t, 0, p.CallCount())
}

func TestRun_CancelMidChainStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := llm.NewMockProvider(llm.MockResponse{Content: []byte("x"), Delay: time.Second})
	second := llm.NewMockProvider(llm.MockText("unused"))
	x := newExecutor(t, []Descriptor{desc("a", 0), desc("b", 1)},
		map[string]llm.Provider{"a": first, "b": second})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, log, err := x.Run(ctx, RoleChat, chatRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, log, 1)
	assert.Equal(t, 0, second.CallCount())
}

func TestRun_DescriptorDefaultsFillRequest(t *testing.T) {
	p := llm.NewMockProvider(llm.MockText("ok"))
	d := desc("groq", 0)
	d.MaxTokens = 300
	d.Temperature = 0.3
	x := newExecutor(t, []Descriptor{d}, map[string]llm.Provider{"groq": p})

	_, _, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	require.Len(t, p.Calls, 1)
	assert.Equal(t, 300, p.Calls[0].MaxTokens)
	assert.InDelta(t, 0.3, p.Calls[0].Temperature, 1e-9)
}

func TestRun_RateLimitedEntryIsSkipped(t *testing.T) {
	limited := desc("limited", 0)
	limited.RatePerMinute = 1
	a := llm.NewMockProvider(llm.MockText("one"), llm.MockText("two"))
	b := llm.NewMockProvider(llm.MockText("backup"))
	x := newExecutor(t, []Descriptor{limited, desc("backup", 1)},
		map[string]llm.Provider{"limited": a, "backup": b})

	res, _, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "limited", res.Provider)

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Provider)
	assert.Equal(t, "rate limited", log[0].Error)
}

func TestRun_ClientBuiltOnce(t *testing.T) {
	var builds atomic.Int32
	p := llm.NewMockProvider(llm.MockText("a"), llm.MockText("b"), llm.MockText("c"))
	factory := func(context.Context, Descriptor) (llm.Provider, error) {
		builds.Add(1)
		return p, nil
	}
	reg, err := NewRegistry([]Descriptor{desc("a", 0)}, factory)
	require.NoError(t, err)
	x := NewExecutor(reg)

	for i := 0; i < 3; i++ {
		_, _, err := x.Run(context.Background(), RoleChat, chatRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), builds.Load())
}

func TestRun_ClientInitFailureFallsThrough(t *testing.T) {
	good := llm.NewMockProvider(llm.MockText("ok"))
	factory := func(_ context.Context, d Descriptor) (llm.Provider, error) {
		if d.Name == "nokey" {
			return nil, errors.New("missing API key")
		}
		return good, nil
	}
	reg, err := NewRegistry([]Descriptor{desc("nokey", 0), desc("good", 1)}, factory)
	require.NoError(t, err)

	res, log, err := NewExecutor(reg).Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "good", res.Provider)
	assert.Equal(t, OutcomeTransportError, log[0].Outcome)
}

func TestRun_RaceTakesFastestAccepted(t *testing.T) {
	providers := map[string]llm.Provider{
		"slow":  llm.NewMockProvider(llm.MockResponse{Content: []byte("slow answer"), Delay: 200 * time.Millisecond}),
		"fast":  llm.NewMockProvider(llm.MockResponse{Content: []byte("fast answer"), Delay: 10 * time.Millisecond}),
		"error": llm.NewMockProvider(llm.MockResponse{Err: errors.New("down")}),
	}
	x := newExecutor(t, []Descriptor{desc("slow", 0), desc("fast", 1), desc("error", 2)}, providers, WithStrategy(Race))

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Provider)
	assert.Equal(t, "fast answer", res.Text)
	assert.Equal(t, OutcomeSuccess, log[len(log)-1].Outcome)
	for _, a := range log {
		assert.NotEqual(t, "slow", a.Provider)
	}
}

func TestRun_RaceExhausted(t *testing.T) {
	providers := map[string]llm.Provider{
		"a": llm.NewMockProvider(llm.MockResponse{Err: errors.New("down")}),
		"b": llm.NewMockProvider(llm.MockText("")),
	}
	x := newExecutor(t, []Descriptor{desc("a", 0), desc("b", 1)}, providers, WithStrategy(Race))

	_, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Len(t, log, 2)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Sequential, s)

	s, err = ParseStrategy("race")
	require.NoError(t, err)
	assert.Equal(t, Race, s)

	_, err = ParseStrategy("parallel")
	assert.Error(t, err)
}

func TestRun_BlankVendorAnswersAreEmpty(t *testing.T) {
	anthropicSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_blank", "type": "message", "role": "assistant",
			"content": []any{}, "model": "claude-haiku-4-5-20251001", "stop_reason": "end_turn",
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 0},
		})
	}))
	t.Cleanup(anthropicSrv.Close)
	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-blank", "object": "chat.completion", "model": "gpt-4o-mini", "choices": []any{},
		})
	}))
	t.Cleanup(openaiSrv.Close)

	claude := desc("claude", 0)
	claude.Client = llm.ClientConfig{Kind: llm.KindAnthropic, APIKey: "k", BaseURL: anthropicSrv.URL}
	gpt := desc("gpt", 1)
	gpt.Client = llm.ClientConfig{Kind: llm.KindOpenAI, APIKey: "k", BaseURL: openaiSrv.URL + "/v1"}

	reg, err := NewRegistry([]Descriptor{claude, gpt}, func(ctx context.Context, d Descriptor) (llm.Provider, error) {
		return llm.NewProvider(ctx, d.Name, d.Client, nil)
	})
	require.NoError(t, err)

	_, log, err := NewExecutor(reg).Run(context.Background(), RoleChat, chatRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Equal(t, "claude:empty gpt:empty", log.String())
}

func TestRun_MalformedStructuredAnswerIsParseError(t *testing.T) {
	providers := map[string]llm.Provider{
		"invalid":   llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrInvalidResponse{Err: errors.New("agrees: want boolean")}}),
		"truncated": llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrMaxTokensExceeded{Content: []byte(`{"agrees": tr`)}}),
		"good":      llm.NewMockProvider(llm.MockText(`{"agrees": true}`)),
	}
	x := newExecutor(t, []Descriptor{desc("invalid", 0), desc("truncated", 1), desc("good", 2)}, providers)

	res, log, err := x.Run(context.Background(), RoleChat, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "good", res.Provider)
	assert.Equal(t, []Outcome{OutcomeParseError, OutcomeParseError, OutcomeSuccess}, log.Outcomes())
	assert.Contains(t, log[1].Error, "truncated")
}

func TestRun_SchemaOnlyForStructuredKinds(t *testing.T) {
	structured := desc("gemini", 0)
	structured.Client.Kind = llm.KindGemini
	compat := desc("groq", 1)
	compat.Client.Kind = llm.KindGroq

	gemini := llm.NewMockProvider(llm.MockText("not an object"))
	groq := llm.NewMockProvider(llm.MockText(`{"agrees": true}`))
	x := newExecutor(t, []Descriptor{structured, compat}, map[string]llm.Provider{"gemini": gemini, "groq": groq})

	schema := &llm.Schema{Name: "opinion", Definition: map[string]any{"type": "object"}}
	req := chatRequest()
	req.Schema = schema
	req.Accept = func(text string) error {
		if text[0] != '{' {
			return errors.New("no object")
		}
		return nil
	}
	res, _, err := x.Run(context.Background(), RoleChat, req)
	require.NoError(t, err)
	assert.Equal(t, "groq", res.Provider)
	require.Len(t, gemini.Calls, 1)
	require.Len(t, groq.Calls, 1)
	assert.Same(t, schema, gemini.Calls[0].Schema)
	assert.Nil(t, groq.Calls[0].Schema)
}

func TestRun_ZeroTemperatureTakesDescriptorValue(t *testing.T) {
	p := llm.NewMockProvider(llm.MockText("ok"), llm.MockText("ok"))
	d := desc("groq", 0)
	d.Temperature = 0.7
	x := newExecutor(t, []Descriptor{d}, map[string]llm.Provider{"groq": p})

	req := chatRequest()
	_, _, err := x.Run(context.Background(), RoleChat, req)
	require.NoError(t, err)
	req.LLM.Temperature = 0.2
	_, _, err = x.Run(context.Background(), RoleChat, req)
	require.NoError(t, err)

	require.Len(t, p.Calls, 2)
	assert.InDelta(t, 0.7, p.Calls[0].Temperature, 1e-9)
	assert.InDelta(t, 0.2, p.Calls[1].Temperature, 1e-9)
}
