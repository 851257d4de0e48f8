//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/model"
)

func TestHistoryAddValidates(t *testing.T) {
	h := NewHistory()

	require.NoError(t, h.Add(model.NewUserMessage("hi")))
	assert.Equal(t, 1, h.Len())

	// A tool message without an id violates the wire invariants.
	err := h.Add(model.Message{Role: model.RoleTool, Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingToolID)
	assert.Equal(t, 1, h.Len())
}

func TestHistorySetSystemMessage(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(model.NewUserMessage("hi")))

	h.SetSystemMessage("you are helpful")
	h.SetSystemMessage("you are terse")

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "you are terse", msgs[0].Content)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
}

func TestHistoryEvictionSparesSystem(t *testing.T) {
	h := NewHistory(WithMaxMessages(3))
	h.SetSystemMessage("sys")

	require.NoError(t, h.Add(model.NewUserMessage("u1")))
	require.NoError(t, h.Add(model.NewAssistantMessage("a1")))
	require.NoError(t, h.Add(model.NewUserMessage("u2")))

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "a1", msgs[1].Content)
	assert.Equal(t, "u2", msgs[2].Content)
}

func TestHistoryEvictionOrder(t *testing.T) {
	h := NewHistory(WithMaxMessages(2))
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(model.NewUserMessage(fmt.Sprintf("m%d", i))))
	}
	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Content)
	assert.Equal(t, "m4", msgs[1].Content)
}

func TestHistoryAddToolCallJoinsOpenAssistant(t *testing.T) {
	h := NewHistory()

	first := model.ToolCall{ID: "call_a_0", Type: model.ToolCallTypeFunction}
	second := model.ToolCall{ID: "call_b_1", Type: model.ToolCallTypeFunction}
	h.AddToolCall(first)
	h.AddToolCall(second)

	msgs := h.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	require.Len(t, msgs[0].ToolCalls, 2)
	assert.Equal(t, "call_a_0", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, "call_b_1", msgs[0].ToolCalls[1].ID)
}

func TestHistoryAddToolCallStartsNewAssistantAfterResult(t *testing.T) {
	h := NewHistory()

	first := model.ToolCall{ID: "call_a_0", Type: model.ToolCallTypeFunction}
	h.AddToolCall(first)
	require.NoError(t, h.AddToolResult(first, "ok"))

	second := model.ToolCall{ID: "call_b_0", Type: model.ToolCallTypeFunction}
	h.AddToolCall(second)

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, model.RoleTool, msgs[1].Role)
	assert.Equal(t, "call_a_0", msgs[1].ToolID)
	assert.Equal(t, "ok", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_b_0", msgs[2].ToolCalls[0].ID)
}

func TestHistoryAddToolCallDoesNotJoinSpokenAssistant(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(model.NewAssistantMessage("thinking out loud")))

	h.AddToolCall(model.ToolCall{ID: "call_a_0", Type: model.ToolCallTypeFunction})

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[0].ToolCalls)
	require.Len(t, msgs[1].ToolCalls, 1)
}

func TestHistoryAddToolResultRequiresID(t *testing.T) {
	h := NewHistory()
	err := h.AddToolResult(model.ToolCall{}, "result")
	assert.ErrorIs(t, err, model.ErrMissingToolID)
}

func TestHistoryAddFailedToolGen(t *testing.T) {
	h := NewHistory()

	snippet := `<tool_call>{"name":}</tool_call>`
	call := model.ToolCall{
		ID:   "call___llm_tool_parse_error___0",
		Type: model.ToolCallTypeFunction,
		Function: model.FunctionCall{
			Name:      model.ToolParseErrorName,
			Arguments: `{"error_type":"invalid_json"}`,
		},
	}
	require.NoError(t, h.AddFailedToolGen(snippet, call, "invalid_json: unparseable tool call"))

	msgs := h.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, snippet, msgs[0].Content)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, call.ID, msgs[0].ToolCalls[0].ID)

	assert.Equal(t, model.RoleTool, msgs[1].Role)
	assert.Equal(t, call.ID, msgs[1].ToolID)
	assert.Contains(t, msgs[1].Content, "invalid_json")
}

func TestHistoryMessagesIsACopy(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(model.NewUserMessage("hi")))

	msgs := h.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hi", h.Messages()[0].Content)
}
