//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package model defines the conversation data model shared across hearth:
// messages, tool calls, the chat-completions request/response envelopes,
// the inline tool-call parser, and the runtime error taxonomy.
package model

import "context"

// Model is the interface to a chat-completions backend.
//
// Error handling is two-layered: the returned error covers failures that
// prevented or aborted the exchange (transport, timeouts, backend-reported
// fatal conditions); Response.Error carries backend-level errors observed
// mid-stream that did not abort the call. Callers distinguish user-facing
// failures with IsUserVisible.
type Model interface {
	// GenerateContent runs one completion against the backend. For
	// streaming calls the implementation consumes the stream internally
	// and returns the final accumulated response.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a model.
type Info struct {
	// Name is the model identifier sent on the wire.
	Name string
}
