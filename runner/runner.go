//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package runner drives one user turn through the reason/act loop: ask the
// model, execute the tool calls it requests, fold the results back into
// history, and repeat until the model answers in plain text or the
// iteration bound is hit.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthd/hearth/event"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
	"github.com/hearthd/hearth/session"
	"github.com/hearthd/hearth/telemetry"
)

// DefaultMaxIterations bounds the reason/act loop per user turn.
const DefaultMaxIterations = 5

// maxIterationsWarning is published when a turn runs out of iterations.
const maxIterationsWarning = "max tool iterations reached"

// ToolExecutor is the slice of the tool processor the runner depends on.
type ToolExecutor interface {
	// FormatForLLM projects the tool catalog into the request shape.
	FormatForLLM() []model.Tool

	// Execute runs one tool call; the returned string is ready to fold
	// into history, and a non-nil error marks the call as failed.
	Execute(ctx context.Context, call model.ToolCall) (string, error)
}

// Runner orchestrates user turns. It is the sole writer to its history and
// must not be shared across concurrent turns.
type Runner struct {
	model   model.Model
	tools   ToolExecutor
	history *session.History
	bus     *event.Bus

	maxIterations int
	streamAll     bool

	turnCounter metric.Int64Counter
	llmCounter  metric.Int64Counter
	toolCounter metric.Int64Counter
}

// Option configures the runner.
type Option func(*Runner)

// WithMaxIterations overrides the per-turn iteration bound.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithStreamAllIterations streams every LLM call of a turn. By default only
// the first call streams; follow-up calls (after tool execution) run
// non-streaming to reduce overhead.
func WithStreamAllIterations() Option {
	return func(r *Runner) {
		r.streamAll = true
	}
}

// NewRunner creates a runner over the given collaborators. tools and bus
// may be nil: a nil executor fails any requested tool call, a nil bus
// drops events.
func NewRunner(m model.Model, tools ToolExecutor, history *session.History, bus *event.Bus, opts ...Option) *Runner {
	if history == nil {
		history = session.NewHistory()
	}
	r := &Runner{
		model:         m,
		tools:         tools,
		history:       history,
		bus:           bus,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.turnCounter = counter("hearth.turns")
	r.llmCounter = counter("hearth.llm.calls")
	r.toolCounter = counter("hearth.tool.calls")
	return r
}

// History exposes the conversation record, for frontends that render it.
func (r *Runner) History() *session.History {
	return r.history
}

// Run drives one user turn to completion. User-visible failures are
// returned (and published verbatim as ERROR events); operational failures
// are logged, published as a generic ERROR event, and swallowed, so a
// failed turn never takes the session down. Cancellation is returned as
// the context error after cleanup.
func (r *Runner) Run(ctx context.Context, userText string) error {
	turnID := uuid.New().String()
	ctx, span := telemetry.Tracer.Start(ctx, telemetry.SpanRunTurn,
		trace.WithAttributes(attribute.String(telemetry.KeyTurnID, turnID)))
	defer span.End()
	r.turnCounter.Add(ctx, 1)

	if err := r.history.Add(model.NewUserMessage(userText)); err != nil {
		return r.failTurn(fmt.Errorf("append user message: %w", err))
	}

	var usage model.Usage
	for i := 0; i < r.maxIterations; i++ {
		stream := i == 0 || r.streamAll
		rsp, err := r.generate(ctx, stream)
		if err != nil {
			return r.failTurn(err)
		}
		if rsp.Usage != nil {
			usage.PromptTokens += rsp.Usage.PromptTokens
			usage.CompletionTokens += rsp.Usage.CompletionTokens
			usage.TotalTokens += rsp.Usage.TotalTokens
		}

		content := rsp.Content()
		calls := rsp.ToolCalls()

		// Streamed calls publish their text as deltas from inside the
		// client; for calls the runner pinned non-streaming it publishes
		// the full text itself.
		if !stream && content != "" {
			r.publish(event.NewMessage(model.RoleAssistant.String(), content,
				event.WithStatus(event.StatusSuccess)))
		}

		if len(calls) == 0 {
			if content != "" {
				if err := r.history.Add(model.NewAssistantMessage(content)); err != nil {
					return r.failTurn(err)
				}
			} else {
				log.Warnf("runner: model returned an empty response")
			}
			r.publish(event.NewStatus(event.StatusSuccess, "turn complete"))
			r.logUsage(turnID, usage)
			return nil
		}

		if err := r.processToolCalls(ctx, content, calls); err != nil {
			return r.failTurn(err)
		}
	}

	log.Warnf("runner: %s", maxIterationsWarning)
	r.publish(event.NewWarning(maxIterationsWarning))
	r.logUsage(turnID, usage)
	return nil
}

// generate runs one LLM call. Streamed calls let the client publish
// MESSAGE/ACTION deltas as they arrive.
func (r *Runner) generate(ctx context.Context, stream bool) (*model.Response, error) {
	req := &model.Request{
		Messages: r.history.Messages(),
		Stream:   stream,
	}
	if r.tools != nil {
		req.Tools = r.tools.FormatForLLM()
	}

	ctx, span := telemetry.Tracer.Start(ctx, telemetry.SpanCallLLM)
	defer span.End()

	rsp, err := r.model.GenerateContent(ctx, req)
	r.llmCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	telemetry.TraceCallLLM(span, req, rsp)
	return rsp, nil
}

// processToolCalls appends the assistant message and executes its calls in
// order. Parse-failure sentinels are folded back as tool errors without
// dispatch; real calls run sequentially, and each failure stays inside the
// turn so the model can react to it.
func (r *Runner) processToolCalls(ctx context.Context, content string, calls []model.ToolCall) error {
	var real []model.ToolCall
	var sentinels []model.ToolCall
	for _, call := range calls {
		if call.Function.Name == model.ToolParseErrorName {
			sentinels = append(sentinels, call)
			continue
		}
		real = append(real, call)
	}

	if len(real) > 0 {
		// A call without an id cannot be answered; mint one so the result
		// message can pair with it.
		for i := range real {
			if real[i].ID == "" {
				real[i].ID = uuid.New().String()
			}
		}
		if err := r.history.Add(model.NewAssistantToolCallMessage(content, real)); err != nil {
			return err
		}
		for _, call := range real {
			if err := r.dispatch(ctx, call); err != nil {
				return err
			}
		}
	}

	for _, call := range sentinels {
		r.recordParseFailure(call)
	}
	return nil
}

// dispatch executes one tool call and folds its outcome into history and
// the event stream.
func (r *Runner) dispatch(ctx context.Context, call model.ToolCall) error {
	name := call.Function.Name
	args := call.Function.Arguments

	action := event.NewAction(name, args)
	r.publish(action)

	ctx, span := telemetry.Tracer.Start(ctx, telemetry.SpanExecuteTool)
	result, err := r.execute(ctx, call)
	telemetry.TraceToolCall(span, name, args, result, err)
	span.End()
	r.toolCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.Bool("error", err != nil),
	))

	// A cancelled call still leaves an error-marked result behind so the
	// history stays well-formed for the next turn.
	if ctx.Err() != nil {
		if result == "" {
			result = "tool failed: " + ctx.Err().Error()
		}
		r.addToolResult(call, result)
		return ctx.Err()
	}

	if err != nil {
		if result == "" {
			result = "tool failed: " + err.Error()
		}
		log.Errorf("runner: tool %s failed: %v", name, err)
		r.publish(event.NewError(result))
	} else {
		r.publish(event.New(event.TypeAction,
			event.WithID(action.ID),
			event.WithStatus(event.StatusSuccess),
			event.WithTool(name, args),
		))
		r.publish(event.NewObservation(result, event.StatusSuccess, event.WithID(action.ID)))
	}

	r.addToolResult(call, result)
	return nil
}

func (r *Runner) addToolResult(call model.ToolCall, result string) {
	if err := r.history.AddToolResult(call, result); err != nil {
		log.Errorf("runner: record tool result for %s: %v", call.Function.Name, err)
	}
}

func (r *Runner) execute(ctx context.Context, call model.ToolCall) (string, error) {
	if r.tools == nil {
		err := errors.New("no tool executor configured")
		return "tool failed: " + err.Error(), err
	}
	return r.tools.Execute(ctx, call)
}

// recordParseFailure folds a sentinel tool call back into history as a
// failed generation, priming the model to correct itself next iteration.
func (r *Runner) recordParseFailure(call model.ToolCall) {
	args, err := call.ParseArguments()
	if err != nil {
		log.Errorf("runner: sentinel call carries unreadable arguments: %v", err)
		args = map[string]any{}
	}
	snippet, _ := args["original_snippet"].(string)
	message, _ := args["error_message"].(string)
	if message == "" {
		message = "malformed tool call"
	}
	errorText := "tool call parse error: " + message

	if err := r.history.AddFailedToolGen(snippet, call, errorText); err != nil {
		log.Errorf("runner: record failed tool generation: %v", err)
		return
	}
	log.Warnf("runner: %s", errorText)
	r.publish(event.NewError(errorText))
}

// failTurn routes a turn-level failure: cancellation propagates, a
// user-visible error is published verbatim and returned, anything else is
// logged and swallowed behind a generic ERROR event.
func (r *Runner) failTurn(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.publish(event.NewStatus(event.StatusFailed, "turn cancelled"))
		return err
	}
	if model.IsUserVisible(err) {
		r.publish(event.NewError(model.UserMessage(err)))
		return err
	}
	log.Errorf("runner: turn failed: %v", err)
	r.publish(event.NewError(model.GenericFailureMessage))
	return nil
}

func (r *Runner) publish(e *event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func (r *Runner) logUsage(turnID string, usage model.Usage) {
	if usage.TotalTokens == 0 {
		return
	}
	log.Debugf("runner: turn %s usage prompt=%d completion=%d total=%d",
		turnID, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

func counter(name string) metric.Int64Counter {
	c, err := telemetry.Meter.Int64Counter(name)
	if err != nil || c == nil {
		log.Warnf("runner: create counter %s: %v", name, err)
		return noop.Int64Counter{}
	}
	return c
}
