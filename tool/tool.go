//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package tool holds the live tool catalog and executes tool calls against
// an MCP session. It owns the projection from MCP descriptors to the
// function-call shape the LLM wire format expects, and the normalization of
// tool results back into plain strings for the conversation history.
package tool

import (
	"context"
	"encoding/json"

	"github.com/hearthd/hearth/mcp"
)

// Declaration describes one callable tool.
type Declaration struct {
	// Name is the unique identifier of the tool.
	Name string `json:"name"`

	// Description explains the tool's purpose to the model.
	Description string `json:"description,omitempty"`

	// InputSchema is the raw JSON schema for the tool's arguments.
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Caller is the slice of the MCP session the processor depends on.
type Caller interface {
	// ListTools fetches the current tool descriptors from the server.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool invokes one tool and returns its raw result.
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
}
