//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthd/hearth/model"
)

// Attribute keys specific to the runtime.
const (
	KeyTurnID      = "hearth.turn_id"
	KeyLLMRequest  = "hearth.llm_request"
	KeyLLMResponse = "hearth.llm_response"
)

// TraceCallLLM annotates an LLM call span with the request/response pair
// and token usage.
func TraceCallLLM(span trace.Span, req *model.Request, rsp *model.Response) {
	span.SetAttributes(
		attribute.String("gen_ai.system", ServiceName),
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.request.model", req.Model),
	)
	if bts, err := json.Marshal(req); err == nil {
		span.SetAttributes(attribute.String(KeyLLMRequest, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMRequest, "<not json serializable>"))
	}
	if rsp == nil {
		return
	}
	if rsp.Usage != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", rsp.Usage.PromptTokens),
			attribute.Int("gen_ai.usage.output_tokens", rsp.Usage.CompletionTokens),
		)
	}
	if bts, err := json.Marshal(rsp); err == nil {
		span.SetAttributes(attribute.String(KeyLLMResponse, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMResponse, "<not json serializable>"))
	}
}

// TraceToolCall annotates a tool execution span and records the outcome.
func TraceToolCall(span trace.Span, name, args, result string, callErr error) {
	span.SetAttributes(
		attribute.String("gen_ai.system", ServiceName),
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", name),
		attribute.String("hearth.tool_call_args", args),
		attribute.String("hearth.tool_response", result),
	)
	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, callErr.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
