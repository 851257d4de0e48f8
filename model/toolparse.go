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
	"fmt"
	"regexp"
	"strings"

	"github.com/hearthd/hearth/log"
)

// Markers bracketing an inline tool call in model output.
const (
	ToolCallOpenTag  = "<tool_call>"
	ToolCallCloseTag = "</tool_call>"
)

// ToolParseErrorName is the sentinel tool name emitted for a marker segment
// that failed extraction. Its arguments object carries error_type,
// error_message and original_snippet so the failure can be folded back into
// the conversation and the model given a chance to retry.
const ToolParseErrorName = "__llm_tool_parse_error__"

// Parse failure classifications stored in the sentinel's error_type field.
const (
	parseErrInvalidJSON      = "invalid_json"
	parseErrMissingName      = "missing_name"
	parseErrInvalidArguments = "invalid_arguments"
)

// toolCallRe matches one non-overlapping <tool_call>...</tool_call> region.
var toolCallRe = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)

// blankRunRe collapses the blank runs left behind by stripped regions.
var blankRunRe = regexp.MustCompile(`\n{3,}`)

// ContainsToolCallMarker reports whether s contains the opening marker.
// Streaming uses this to detect the switch from prose to tool-call output.
func ContainsToolCallMarker(s string) bool {
	return strings.Contains(s, ToolCallOpenTag)
}

// NormalizeToolCallJSON repairs the common malformations models produce
// inside tool-call markers. Repairs are applied in a fixed order: trim
// whitespace, drop a wrapping code fence, rebalance braces, unwrap doubled
// braces. The result may still be invalid JSON; callers must parse it.
// The function is idempotent.
func NormalizeToolCallJSON(s string) string {
	s = strings.TrimSpace(s)

	// Drop a wrapping markdown fence (```json ... ``` or ``` ... ```).
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	// Rebalance braces. Models frequently lose a closing brace or emit one
	// too many at the end of the object.
	open := strings.Count(s, "{")
	closed := strings.Count(s, "}")
	if open > closed {
		s += strings.Repeat("}", open-closed)
	} else if closed > open {
		for closed > open && strings.HasSuffix(s, "}") {
			s = s[:len(s)-1]
			closed--
		}
	}

	// Unwrap {{...}} when the inner content is itself a JSON object.
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		inner := s[1 : len(s)-1]
		var probe map[string]any
		if err := json.Unmarshal([]byte(inner), &probe); err == nil {
			s = inner
		}
	}

	return s
}

// ExtractToolCalls scans text for <tool_call> regions and returns one
// ToolCall per region, in order of appearance. Regions that fail extraction
// yield a sentinel ToolCall named ToolParseErrorName instead; the function
// never fails and never returns an error.
func ExtractToolCalls(text string) []ToolCall {
	matches := toolCallRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(matches))
	for i, match := range matches {
		snippet, inner := match[0], match[1]
		call, err := parseToolCallSnippet(inner, i)
		if err != nil {
			log.Warnf("tool call extraction failed for segment %d: %v", i, err)
			calls = append(calls, newParseErrorCall(err, snippet, i))
			continue
		}
		calls = append(calls, call)
	}
	return calls
}

// StripToolCallRegions removes every <tool_call> region from text and tidies
// up the whitespace the removal leaves behind.
func StripToolCallRegions(text string) string {
	if !ContainsToolCallMarker(text) {
		return text
	}
	stripped := toolCallRe.ReplaceAllString(text, "\n\n")
	stripped = blankRunRe.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}

// parseError describes why a marker segment could not be converted into a
// tool call.
type parseError struct {
	kind string
	msg  string
}

func (e *parseError) Error() string {
	return e.kind + ": " + e.msg
}

// parseToolCallSnippet normalizes and decodes the text between markers.
func parseToolCallSnippet(inner string, index int) (ToolCall, error) {
	normalized := NormalizeToolCallJSON(inner)

	var obj map[string]any
	if err := json.Unmarshal([]byte(normalized), &obj); err != nil {
		return ToolCall{}, &parseError{kind: parseErrInvalidJSON, msg: err.Error()}
	}

	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return ToolCall{}, &parseError{kind: parseErrMissingName, msg: "tool call object has no string name"}
	}

	args, err := resolveArguments(obj["arguments"])
	if err != nil {
		return ToolCall{}, err
	}
	argBytes, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, &parseError{kind: parseErrInvalidArguments, msg: err.Error()}
	}

	return ToolCall{
		ID:   syntheticCallID(name, index),
		Type: ToolCallTypeFunction,
		Function: FunctionCall{
			Name:      name,
			Arguments: string(argBytes),
		},
	}, nil
}

// resolveArguments accepts the three argument encodings models produce:
// absent, an object, or a JSON-encoded object string.
func resolveArguments(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		var args map[string]any
		if err := json.Unmarshal([]byte(v), &args); err != nil {
			return nil, &parseError{kind: parseErrInvalidArguments, msg: "arguments string is not a JSON object: " + err.Error()}
		}
		return args, nil
	default:
		return nil, &parseError{kind: parseErrInvalidArguments, msg: fmt.Sprintf("unsupported arguments type %T", raw)}
	}
}

// newParseErrorCall builds the sentinel tool call for a failed segment.
func newParseErrorCall(err error, snippet string, index int) ToolCall {
	kind := parseErrInvalidJSON
	msg := err.Error()
	var pe *parseError
	if errors.As(err, &pe) {
		kind = pe.kind
		msg = pe.msg
	}
	args, _ := json.Marshal(map[string]any{
		"error_type":       kind,
		"error_message":    msg,
		"original_snippet": snippet,
	})
	return ToolCall{
		ID:   syntheticCallID(ToolParseErrorName, index),
		Type: ToolCallTypeFunction,
		Function: FunctionCall{
			Name:      ToolParseErrorName,
			Arguments: string(args),
		},
	}
}

func syntheticCallID(name string, index int) string {
	return fmt.Sprintf("call_%s_%d", name, index)
}
