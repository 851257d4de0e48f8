//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"time"
)

// Error type constants for ResponseError.Type.
const (
	ErrorTypeStreamError = "stream_error"
	ErrorTypeAPIError    = "api_error"
)

// Object type constants for Response.Object.
const (
	// ObjectTypeChatCompletion is the object type of a complete response.
	ObjectTypeChatCompletion = "chat.completion"
	// ObjectTypeChatCompletionChunk is the object type of a streamed delta.
	ObjectTypeChatCompletionChunk = "chat.completion.chunk"
	// ObjectTypeError marks a response that only carries an error.
	ObjectTypeError = "error"
)

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`

	// Message is the complete message content.
	Message Message `json:"message,omitempty"`

	// Delta is the incremental message content on streamed chunks.
	Delta Message `json:"delta,omitempty"`

	// FinishReason is the reason generation stopped: "stop", "length",
	// "tool_calls", "content_filter".
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseError is a backend-level error carried inside a response body or
// synthesized for stream failures.
type ResponseError struct {
	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Type is the error classification.
	Type string `json:"type"`

	// Code is the backend-specific error code, if any.
	Code string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return e.Message
}

// Response is the chat-completion envelope returned by the backend. For
// streaming calls the client synthesizes one final Response from the
// accumulated deltas; intermediate chunks never leave the client.
type Response struct {
	// ID is the unique identifier the backend assigned to this response.
	ID string `json:"id"`

	// Object describes the payload type (e.g. "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model that generated the response.
	Model string `json:"model"`

	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage, when the backend reports it.
	Usage *Usage `json:"usage,omitempty"`

	// Error carries an API-level error, if any.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp records when the client received the response.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Done marks the response as final.
	Done bool `json:"done,omitempty"`
}

// Content returns the text content of the first choice, or "". Streamed
// chunks carry their text in Delta rather than Message.
func (r *Response) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	if c := r.Choices[0].Message.Content; c != "" {
		return c
	}
	return r.Choices[0].Delta.Content
}

// ToolCalls returns the tool calls of the first choice, or nil.
func (r *Response) ToolCalls() []ToolCall {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	if tc := r.Choices[0].Message.ToolCalls; len(tc) > 0 {
		return tc
	}
	return r.Choices[0].Delta.ToolCalls
}

// IsToolCallResponse reports whether the first choice requests tool
// execution.
func (r *Response) IsToolCallResponse() bool {
	return len(r.ToolCalls()) > 0
}
