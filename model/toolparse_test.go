//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToolCallJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean object untouched", `{"name":"x"}`, `{"name":"x"}`},
		{"surrounding whitespace", "  \n\t{\"name\":\"x\"}  \n", `{"name":"x"}`},
		{"json fence", "```json\n{\"name\":\"x\"}\n```", `{"name":"x"}`},
		{"bare fence", "```\n{\"name\":\"x\"}\n```", `{"name":"x"}`},
		{"missing closing brace", `{"name":"x","arguments":{`, `{"name":"x","arguments":{}}`},
		{"extra closing braces", `{"name":"x"}}}`, `{"name":"x"}`},
		{"doubled braces unwrap", `{{"name":"x","arguments":{}}}`, `{"name":"x","arguments":{}}`},
		{"doubled braces with invalid inner stay", `{{not json}}`, `{{not json}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeToolCallJSON(tt.in))
		})
	}
}

func TestNormalizeToolCallJSONIdempotent(t *testing.T) {
	inputs := []string{
		`{"name":"x"}`,
		"```json\n{\"name\":\"x\"}\n```",
		`{"a":{`,
		`{{"name":"x","arguments":{}}}`,
		`}}}`,
		"",
		"plain text",
	}
	for _, in := range inputs {
		once := NormalizeToolCallJSON(in)
		twice := NormalizeToolCallJSON(once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestExtractToolCallsWellFormed(t *testing.T) {
	text := `Let me check. <tool_call>{"name":"get_wifi_networks","arguments":{}}</tool_call>`

	calls := ExtractToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_get_wifi_networks_0", calls[0].ID)
	assert.Equal(t, ToolCallTypeFunction, calls[0].Type)
	assert.Equal(t, "get_wifi_networks", calls[0].Function.Name)

	args, err := calls[0].ParseArguments()
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestExtractToolCallsFencedAndSpaced(t *testing.T) {
	text := "<tool_call>\n```json\n  {\"name\":\"n\",\"arguments\":{}}\n```\n</tool_call>"

	calls := ExtractToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "n", calls[0].Function.Name)
	args, err := calls[0].ParseArguments()
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestExtractToolCallsDoubledBraces(t *testing.T) {
	text := `<tool_call>{{"name":"x","arguments":{}}}</tool_call>`

	calls := ExtractToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "x", calls[0].Function.Name)
}

func TestExtractToolCallsArgumentsEncodings(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			"absent arguments",
			`<tool_call>{"name":"f"}</tool_call>`,
			map[string]any{},
		},
		{
			"object arguments",
			`<tool_call>{"name":"f","arguments":{"text":"hi"}}</tool_call>`,
			map[string]any{"text": "hi"},
		},
		{
			"string-encoded arguments",
			`<tool_call>{"name":"f","arguments":"{\"text\":\"hi\"}"}</tool_call>`,
			map[string]any{"text": "hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ExtractToolCalls(tt.text)
			require.Len(t, calls, 1)
			require.Equal(t, "f", calls[0].Function.Name)
			args, err := calls[0].ParseArguments()
			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestExtractToolCallsMultiple(t *testing.T) {
	text := `<tool_call>{"name":"a","arguments":{}}</tool_call> and then ` +
		`<tool_call>{"name":"b","arguments":{}}</tool_call>`

	calls := ExtractToolCalls(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Function.Name)
	assert.Equal(t, "call_a_0", calls[0].ID)
	assert.Equal(t, "b", calls[1].Function.Name)
	assert.Equal(t, "call_b_1", calls[1].ID)
}

func TestExtractToolCallsSentinels(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind string
	}{
		{"unparseable json", `<tool_call>definitely not json</tool_call>`, "invalid_json"},
		{"missing name", `<tool_call>{"arguments":{}}</tool_call>`, "missing_name"},
		{"numeric arguments", `<tool_call>{"name":"f","arguments":42}</tool_call>`, "invalid_arguments"},
		{"arguments string not an object", `<tool_call>{"name":"f","arguments":"[1,2]"}</tool_call>`, "invalid_arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ExtractToolCalls(tt.text)
			require.Len(t, calls, 1)
			assert.Equal(t, ToolParseErrorName, calls[0].Function.Name)

			var args map[string]string
			require.NoError(t, json.Unmarshal([]byte(calls[0].Function.Arguments), &args))
			assert.Equal(t, tt.wantKind, args["error_type"])
			assert.NotEmpty(t, args["error_message"])
			assert.Contains(t, args["original_snippet"], ToolCallOpenTag)
		})
	}
}

func TestExtractToolCallsNoMarkers(t *testing.T) {
	assert.Nil(t, ExtractToolCalls("just a plain answer"))
}

func TestStripToolCallRegions(t *testing.T) {
	text := "Sure. <tool_call>{\"name\":\"speak_text\",\"arguments\":{\"text\":\"hi\"}}</tool_call>\n\nDone."
	got := StripToolCallRegions(text)
	assert.NotContains(t, got, ToolCallOpenTag)
	assert.Contains(t, got, "Sure.")
	assert.Contains(t, got, "Done.")

	// No markers: text passes through untouched.
	assert.Equal(t, "plain", StripToolCallRegions("plain"))
}

func TestContainsToolCallMarker(t *testing.T) {
	assert.True(t, ContainsToolCallMarker("a <tool_call> b"))
	assert.False(t, ContainsToolCallMarker("a plain response"))
}
