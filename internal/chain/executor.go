package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
)

// ErrChainExhausted is returned when no provider produced an acceptable
// answer. The result is always empty in that case.
var ErrChainExhausted = errors.New("provider chain exhausted")

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeEmpty          Outcome = "empty"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeParseError     Outcome = "parse_error"
)

// Strategy selects how the chain is traversed.
type Strategy string

const (
	// Sequential tries providers one at a time in priority order.
	Sequential Strategy = "sequential"

	// Race starts every provider at once and takes the first accepted
	// answer in completion order.
	Race Strategy = "race"
)

// ParseStrategy validates a strategy name. Empty selects Sequential.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", Sequential:
		return Sequential, nil
	case Race:
		return Race, nil
	}
	return "", fmt.Errorf("unknown chain strategy %q (want sequential or race)", s)
}

// Request is one chain invocation. Zero MaxTokens and Temperature in LLM are
// filled from each entry's descriptor.
type Request struct {
	LLM llm.Request

	// Schema, when set, is attached to attempts against kinds with native
	// structured output (see llm.SupportsSchema). Other kinds get the plain
	// prompt, so Accept should still parse free text.
	Schema *llm.Schema

	// Accept, when set, checks the trimmed text of a non-empty answer. A
	// rejected answer is recorded as a parse error and the chain moves on.
	Accept func(text string) error
}

// Result is the answer of the provider that succeeded.
type Result struct {
	Provider string
	Model    string
	Text     string
	Usage    llm.Usage
}

// Attempt records one provider invocation.
type Attempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

// AttemptLog is the ordered record of a chain traversal.
type AttemptLog []Attempt

// Outcomes returns just the outcome sequence.
func (l AttemptLog) Outcomes() []Outcome {
	out := make([]Outcome, len(l))
	for i, a := range l {
		out[i] = a.Outcome
	}
	return out
}

// String renders the log as "name:outcome" pairs.
func (l AttemptLog) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.Provider + ":" + string(a.Outcome)
	}
	return strings.Join(parts, " ")
}

// Executor runs requests against a Registry.
type Executor struct {
	reg      *Registry
	strategy Strategy
}

// Option configures an Executor.
type Option func(*Executor)

// WithStrategy selects the traversal strategy.
func WithStrategy(s Strategy) Option {
	return func(x *Executor) { x.strategy = s }
}

// NewExecutor creates an Executor. The default strategy is Sequential.
func NewExecutor(reg *Registry, opts ...Option) *Executor {
	x := &Executor{reg: reg, strategy: Sequential}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Registry returns the registry the executor runs against.
func (x *Executor) Registry() *Registry { return x.reg }

// Strategy returns the traversal strategy.
func (x *Executor) Strategy() Strategy { return x.strategy }

// Run sends req to the role's providers. It returns the first accepted
// answer, or ErrChainExhausted with an empty Result. Cancelling ctx stops
// the traversal; no provider is invoked after cancellation.
func (x *Executor) Run(ctx context.Context, role Role, req Request) (Result, AttemptLog, error) {
	ctx = llm.WithPurpose(ctx, string(role))
	entries := x.reg.entries[role]

	var (
		res Result
		log AttemptLog
		err error
	)
	if x.strategy == Race && len(entries) > 1 {
		res, log, err = x.race(ctx, entries, req)
	} else {
		res, log, err = x.sequential(ctx, entries, req)
	}

	if err != nil {
		logger.Warn("provider chain exhausted", "role", role, "attempts", log.String(), "error", err)
	} else {
		logger.Debug("provider chain answered", "role", role, "provider", res.Provider, "attempts", log.String())
	}
	return res, log, err
}

func (x *Executor) sequential(ctx context.Context, entries []*entry, req Request) (Result, AttemptLog, error) {
	var log AttemptLog
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Result{}, log, fmt.Errorf("%w: %w", ErrChainExhausted, err)
		}
		att, res, ok := attempt(ctx, e, req)
		log = append(log, att)
		if ok {
			return res, log, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, log, fmt.Errorf("%w: %w", ErrChainExhausted, err)
	}
	return Result{}, log, ErrChainExhausted
}

type raceResult struct {
	att Attempt
	res Result
	ok  bool
}

func (x *Executor) race(ctx context.Context, entries []*entry, req Request) (Result, AttemptLog, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, nil, fmt.Errorf("%w: %w", ErrChainExhausted, err)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan raceResult, len(entries))
	for _, e := range entries {
		go func(e *entry) {
			att, res, ok := attempt(rctx, e, req)
			done <- raceResult{att: att, res: res, ok: ok}
		}(e)
	}

	var log AttemptLog
	for range entries {
		select {
		case r := <-done:
			log = append(log, r.att)
			if r.ok {
				return r.res, log, nil
			}
		case <-ctx.Done():
			return Result{}, log, fmt.Errorf("%w: %w", ErrChainExhausted, ctx.Err())
		}
	}
	return Result{}, log, ErrChainExhausted
}

// attempt invokes one entry under its own timeout and classifies the result.
func attempt(ctx context.Context, e *entry, req Request) (Attempt, Result, bool) {
	start := time.Now()
	att := Attempt{Provider: e.desc.Name, Model: e.desc.Client.Model}

	fail := func(o Outcome, err error) (Attempt, Result, bool) {
		att.Outcome = o
		att.Latency = time.Since(start)
		if err != nil {
			att.Error = err.Error()
		}
		logger.Debug("provider attempt failed", "provider", att.Provider, "outcome", o, "error", att.Error)
		return att, Result{}, false
	}

	if e.limiter != nil && !e.limiter.Allow() {
		return fail(OutcomeTransportError, errors.New("rate limited"))
	}

	p, err := e.client(ctx)
	if err != nil {
		return fail(OutcomeTransportError, fmt.Errorf("client init: %w", err))
	}
	att.Model = p.ModelID()

	actx, cancel := context.WithTimeout(ctx, e.desc.Timeout)
	defer cancel()

	llmReq := req.LLM
	if llmReq.MaxTokens == 0 {
		llmReq.MaxTokens = e.desc.MaxTokens
	}
	// Zero is unset; a request cannot force 0.0 over the entry's value.
	if llmReq.Temperature == 0 {
		llmReq.Temperature = e.desc.Temperature
	}
	if req.Schema != nil && llm.SupportsSchema(e.desc.Client.Kind) {
		llmReq.Schema = req.Schema
	}

	resp, err := safeGenerate(actx, p, llmReq)
	if err != nil {
		switch {
		case ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || actx.Err() == context.DeadlineExceeded):
			return fail(OutcomeTimeout, err)
		case llm.IsMalformed(err):
			return fail(OutcomeParseError, err)
		}
		return fail(OutcomeTransportError, err)
	}

	if resp.Empty() {
		return fail(OutcomeEmpty, nil)
	}
	text := strings.TrimSpace(resp.Text())
	if req.Accept != nil {
		if err := req.Accept(text); err != nil {
			return fail(OutcomeParseError, err)
		}
	}

	att.Outcome = OutcomeSuccess
	att.Latency = time.Since(start)
	if resp.Model != "" {
		att.Model = resp.Model
	}
	return att, Result{
		Provider: e.desc.Name,
		Model:    att.Model,
		Text:     text,
		Usage:    resp.Usage,
	}, true
}

// safeGenerate turns a provider panic into an error.
func safeGenerate(ctx context.Context, p llm.Provider, req llm.Request) (resp *llm.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	resp, err = p.Generate(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}
	return resp, err
}
