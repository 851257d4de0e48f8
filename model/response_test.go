//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseContent(t *testing.T) {
	rsp := &Response{
		Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: "hello"}}},
	}
	assert.Equal(t, "hello", rsp.Content())

	// Streaming chunks carry text in the delta instead.
	chunk := &Response{
		Choices: []Choice{{Delta: Message{Content: "hel"}}},
	}
	assert.Equal(t, "hel", chunk.Content())

	assert.Equal(t, "", (&Response{}).Content())
}

func TestResponseToolCalls(t *testing.T) {
	rsp := &Response{
		Choices: []Choice{{
			Message: Message{
				Role:      RoleAssistant,
				ToolCalls: []ToolCall{{ID: "call_a_0", Type: ToolCallTypeFunction}},
			},
		}},
	}
	assert.True(t, rsp.IsToolCallResponse())
	assert.Len(t, rsp.ToolCalls(), 1)

	assert.False(t, (&Response{}).IsToolCallResponse())
	assert.Nil(t, (&Response{}).ToolCalls())
}

func TestResponseErrorMessage(t *testing.T) {
	respErr := &ResponseError{Message: "model not loaded", Type: ErrorTypeAPIError}
	assert.Equal(t, "model not loaded", respErr.Error())
}
