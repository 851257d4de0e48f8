//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"encoding/json"
	"errors"
)

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Validation errors returned by Message.Validate.
var (
	// ErrInvalidRole indicates a role outside the defined constants.
	ErrInvalidRole = errors.New("model: invalid message role")
	// ErrUnexpectedToolCalls indicates tool calls on a non-assistant message.
	ErrUnexpectedToolCalls = errors.New("model: tool_calls are only valid on assistant messages")
	// ErrMissingToolID indicates a tool message without a tool_call_id.
	ErrMissingToolID = errors.New("model: tool messages require tool_call_id")
	// ErrUnexpectedToolID indicates a tool_call_id on a non-tool message.
	ErrUnexpectedToolID = errors.New("model: tool_call_id is only valid on tool messages")
)

// Message represents a single message in a conversation. The JSON encoding
// is exactly the chat-completions wire shape, so a message slice marshals
// directly into a request body.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolID    string     `json:"tool_call_id,omitempty"` // set on tool result messages
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`   // set on assistant messages
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// NewAssistantToolCallMessage creates an assistant message that carries tool
// calls. Content may be empty; it is set when the calls were extracted from
// inline markers and the surrounding text should be preserved.
func NewAssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}
}

// NewToolMessage creates a tool result message answering the tool call with
// the given id.
func NewToolMessage(toolCallID, content string) Message {
	return Message{
		Role:    RoleTool,
		ToolID:  toolCallID,
		Content: content,
	}
}

// Validate enforces the per-role invariants:
// tool_calls only on assistant messages, tool_call_id required on tool
// messages and forbidden elsewhere.
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return ErrInvalidRole
	}
	if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
		return ErrUnexpectedToolCalls
	}
	if m.Role == RoleTool && m.ToolID == "" {
		return ErrMissingToolID
	}
	if m.Role != RoleTool && m.ToolID != "" {
		return ErrUnexpectedToolID
	}
	return nil
}

// ToolCallTypeFunction is the only tool call type the backend emits.
const ToolCallTypeFunction = "function"

// ToolCall is a structured request by the model to invoke a named tool.
// Index is only present on streaming deltas, where it addresses the entry
// the fragment belongs to.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
	Index    *int         `json:"index,omitempty"`
}

// FunctionCall names the tool and carries its arguments. Arguments stay a
// JSON-serialized string on the wire; ParseArguments produces the object
// form used for dispatch.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the arguments string into an object. An empty
// string parses as an empty object.
func (c ToolCall) ParseArguments() (map[string]any, error) {
	if c.Function.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Tool is the catalog entry sent to the backend: the
// {type:"function", function:{...}} projection of a tool descriptor.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes a callable function to the model.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// InferenceConfig carries the sampling parameters the backend understands.
// Pointer fields are omitted from the wire when unset so the backend's
// defaults apply.
type InferenceConfig struct {
	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`

	// TopK restricts sampling to the K most likely tokens.
	TopK *int `json:"top_k,omitempty"`

	// MinP discards tokens below this probability, scaled by the top token.
	MinP *float64 `json:"min_p,omitempty"`

	// RepetitionPenalty penalizes repeated tokens.
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stop sequences where the backend stops generating further tokens.
	Stop []string `json:"stop,omitempty"`
}

// LoadModelConfig carries model-load parameters for the local backend.
type LoadModelConfig struct {
	// NCtx is the context window size to load the model with.
	NCtx int `json:"n_ctx,omitempty"`
}

// Request is the request to the model backend.
type Request struct {
	// Model is the model identifier.
	Model string `json:"model"`

	// Messages is the conversation history in wire order.
	Messages []Message `json:"messages"`

	// Tools is the tool catalog offered to the model, if any.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice optionally constrains how the model may use tools.
	ToolChoice string `json:"tool_choice,omitempty"`

	// Stream selects server-sent-event streaming.
	Stream bool `json:"stream"`

	// InferenceConfig carries sampling parameters.
	InferenceConfig InferenceConfig `json:"inference_configs"`

	// LoadModelConfig optionally carries model-load parameters for the
	// local backend.
	LoadModelConfig *LoadModelConfig `json:"load_model_configs,omitempty"`
}
