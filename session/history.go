//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package session maintains the conversation record for one assistant
// session: an ordered, capacity-bounded message history with the role
// invariants the LLM wire format demands.
package session

import (
	"fmt"

	"github.com/hearthd/hearth/model"
)

// DefaultMaxMessages bounds the history when no option overrides it.
const DefaultMaxMessages = 100

type options struct {
	maxMessages int
}

// Option configures a History.
type Option func(*options)

// WithMaxMessages sets the history capacity. Values below one fall back
// to the default.
func WithMaxMessages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessages = n
		}
	}
}

// History is the ordered conversation record. On overflow the oldest
// non-system message is evicted; the system message is never evicted and
// stays at index 0.
//
// History is owned by the turn runner, the sole writer; it is not
// internally locked.
type History struct {
	maxMessages int
	messages    []model.Message
}

// NewHistory creates an empty History.
func NewHistory(opts ...Option) *History {
	o := options{maxMessages: DefaultMaxMessages}
	for _, opt := range opts {
		opt(&o)
	}
	return &History{maxMessages: o.maxMessages}
}

// Add validates msg and appends it.
func (h *History) Add(msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	h.append(msg)
	return nil
}

// SetSystemMessage removes any existing system messages and prepends a
// fresh one, so exactly one system message occupies index 0.
func (h *History) SetSystemMessage(content string) {
	kept := h.messages[:0]
	for _, msg := range h.messages {
		if msg.Role != model.RoleSystem {
			kept = append(kept, msg)
		}
	}
	h.messages = append([]model.Message{model.NewSystemMessage(content)}, kept...)
	h.evict()
}

// AddToolCall records a tool call emitted by the model. When the tail is
// an assistant message with empty content that has not yet been answered
// by a tool result, the call joins its tool_calls list; otherwise a new
// assistant message is started.
func (h *History) AddToolCall(call model.ToolCall) {
	if n := len(h.messages); n > 0 {
		tail := &h.messages[n-1]
		if tail.Role == model.RoleAssistant && tail.Content == "" {
			tail.ToolCalls = append(tail.ToolCalls, call)
			return
		}
	}
	h.append(model.NewAssistantToolCallMessage("", []model.ToolCall{call}))
}

// AddToolResult appends the tool-role message answering call.
func (h *History) AddToolResult(call model.ToolCall, result string) error {
	if call.ID == "" {
		return fmt.Errorf("add tool result: %w", model.ErrMissingToolID)
	}
	h.append(model.NewToolMessage(call.ID, result))
	return nil
}

// AddFailedToolGen records a tool-call snippet the model produced that
// could not be parsed: the raw snippet goes in as the assistant message
// and the parse error as its tool result, so the model can read its own
// mistake and correct it on the next iteration.
func (h *History) AddFailedToolGen(snippet string, call model.ToolCall, errorText string) error {
	if call.ID == "" {
		return fmt.Errorf("add failed tool generation: %w", model.ErrMissingToolID)
	}
	h.append(model.NewAssistantToolCallMessage(snippet, []model.ToolCall{call}))
	h.append(model.NewToolMessage(call.ID, errorText))
	return nil
}

// Messages returns a copy of the history in wire order. Mutating the
// returned slice does not affect the history.
func (h *History) Messages() []model.Message {
	out := make([]model.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len reports the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

func (h *History) append(msg model.Message) {
	h.messages = append(h.messages, msg)
	h.evict()
}

// evict drops the oldest non-system messages until the history fits. A
// history of only system messages is left alone.
func (h *History) evict() {
	for len(h.messages) > h.maxMessages {
		evicted := false
		for i, msg := range h.messages {
			if msg.Role != model.RoleSystem {
				h.messages = append(h.messages[:i], h.messages[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
