//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package openaicompat

import (
	"strings"

	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// toolCallEntry is one slot of the accumulator: a tool call under
// reconstruction from streamed fragments.
type toolCallEntry struct {
	id         string
	typ        string
	name       string
	args       strings.Builder
	dispatched bool
}

// dispatchable reports whether the entry has received the fields required
// to announce it.
func (e *toolCallEntry) dispatchable() bool {
	return e.id != "" && e.name != ""
}

func (e *toolCallEntry) toolCall() model.ToolCall {
	return model.ToolCall{
		ID:   e.id,
		Type: e.typ,
		Function: model.FunctionCall{
			Name:      e.name,
			Arguments: e.args.String(),
		},
	}
}

// toolCallAccumulator reassembles complete tool calls from the sparse,
// fragmented tool_calls deltas a streaming backend emits. Each delta
// addresses an entry by index; string fields concatenate in arrival order.
// The first time an entry has both an id and a function name it is reported
// through onDispatchable, exactly once.
type toolCallAccumulator struct {
	entries        []*toolCallEntry
	onDispatchable func(model.ToolCall)
}

func newToolCallAccumulator(onDispatchable func(model.ToolCall)) *toolCallAccumulator {
	return &toolCallAccumulator{onDispatchable: onDispatchable}
}

// add merges one delta. A delta without an index addresses entry 0, which
// is how backends emit single-call responses.
func (a *toolCallAccumulator) add(delta model.ToolCall) {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	if idx < 0 {
		log.Warnf("tool call delta has negative index %d, dropping", idx)
		return
	}

	for len(a.entries) <= idx {
		a.entries = append(a.entries, &toolCallEntry{})
	}
	entry := a.entries[idx]

	entry.id += delta.ID
	entry.name += delta.Function.Name
	entry.args.WriteString(delta.Function.Arguments)
	if delta.Type != "" {
		if entry.typ != "" && entry.typ != delta.Type {
			log.Warnf("tool call %d changed type from %q to %q, keeping the latest", idx, entry.typ, delta.Type)
		}
		entry.typ = delta.Type
	}

	if !entry.dispatched && entry.dispatchable() {
		entry.dispatched = true
		if a.onDispatchable != nil {
			a.onDispatchable(entry.toolCall())
		}
	}
}

// finish returns the completed tool calls in index order. Entries that
// never received an id and name are skipped with a warning.
func (a *toolCallAccumulator) finish() []model.ToolCall {
	if len(a.entries) == 0 {
		return nil
	}
	calls := make([]model.ToolCall, 0, len(a.entries))
	for i, entry := range a.entries {
		if !entry.dispatchable() {
			log.Warnf("discarding incomplete tool call at index %d (id=%q name=%q)", i, entry.id, entry.name)
			continue
		}
		call := entry.toolCall()
		if call.Type == "" {
			call.Type = model.ToolCallTypeFunction
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return nil
	}
	return calls
}
