//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package event provides the event stream between the runtime and any
// subscribed frontend: text deltas, tool activity, turn status, and
// diagnostics, fanned out over an in-process bus.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an event.
type Type string

// Event types.
const (
	TypeInfo        Type = "INFO"
	TypeMessage     Type = "MESSAGE"
	TypeAction      Type = "ACTION"
	TypeObservation Type = "OBSERVATION"
	TypeStatus      Type = "STATUS"
	TypeWarning     Type = "WARNING"
	TypeError       Type = "ERROR"
)

// Status qualifies an event's progress.
type Status string

// Event statuses.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Event is one item on the bus. Chunks of a single streaming message
// segment share an ID; a fresh ID marks a new segment, for example when an
// inline tool-call marker switches the content type mid-stream.
type Event struct {
	// ID is the unique identifier of the event stream segment.
	ID string `json:"id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// Status qualifies progress for ACTION, OBSERVATION and STATUS events.
	Status Status `json:"status,omitempty"`

	// Content is the free-form payload: message text, observation body,
	// or a human-readable diagnostic.
	Content string `json:"content,omitempty"`

	// Role is set on MESSAGE events (assistant, user).
	Role string `json:"role,omitempty"`

	// ToolName and ToolArgs are set on ACTION events.
	ToolName string `json:"tool_name,omitempty"`
	ToolArgs string `json:"tool_args,omitempty"`

	// Timestamp records when the event was created.
	Timestamp time.Time `json:"timestamp"`
}

// Option configures an Event at construction.
type Option func(*Event)

// WithID reuses an existing segment ID instead of minting a fresh one.
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithStatus sets the status of the event.
func WithStatus(status Status) Option {
	return func(e *Event) {
		e.Status = status
	}
}

// WithContent sets the content of the event.
func WithContent(content string) Option {
	return func(e *Event) {
		e.Content = content
	}
}

// WithRole sets the role of a MESSAGE event.
func WithRole(role string) Option {
	return func(e *Event) {
		e.Role = role
	}
}

// WithTool sets the tool name and serialized arguments of an ACTION event.
func WithTool(name, args string) Option {
	return func(e *Event) {
		e.ToolName = name
		e.ToolArgs = args
	}
}

// New creates an Event with a generated ID and the current timestamp.
func New(t Type, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewMessage creates a MESSAGE event carrying a text delta or a full
// message body for the given role.
func NewMessage(role, content string, opts ...Option) *Event {
	return New(TypeMessage, append([]Option{WithRole(role), WithContent(content)}, opts...)...)
}

// NewAction creates an ACTION(IN_PROGRESS) event announcing a tool dispatch.
func NewAction(toolName, toolArgs string, opts ...Option) *Event {
	return New(TypeAction, append([]Option{
		WithStatus(StatusInProgress),
		WithTool(toolName, toolArgs),
	}, opts...)...)
}

// NewObservation creates an OBSERVATION event carrying a tool result.
func NewObservation(content string, status Status, opts ...Option) *Event {
	return New(TypeObservation, append([]Option{
		WithStatus(status),
		WithContent(content),
	}, opts...)...)
}

// NewStatus creates a STATUS event describing turn progress.
func NewStatus(status Status, content string) *Event {
	return New(TypeStatus, WithStatus(status), WithContent(content))
}

// NewInfo creates an INFO event.
func NewInfo(content string) *Event {
	return New(TypeInfo, WithContent(content))
}

// NewWarning creates a WARNING event.
func NewWarning(content string) *Event {
	return New(TypeWarning, WithContent(content))
}

// NewError creates an ERROR(FAILED) event.
func NewError(content string) *Event {
	return New(TypeError, WithStatus(StatusFailed), WithContent(content))
}
