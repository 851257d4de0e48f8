//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package openaicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/model"
)

func indexOf(i int) *int {
	return &i
}

func TestAccumulatorReassemblesFragments(t *testing.T) {
	var dispatched []model.ToolCall
	acc := newToolCallAccumulator(func(c model.ToolCall) {
		dispatched = append(dispatched, c)
	})

	acc.add(model.ToolCall{
		Index:    indexOf(0),
		ID:       "c1",
		Type:     model.ToolCallTypeFunction,
		Function: model.FunctionCall{Name: "get_wifi"},
	})
	acc.add(model.ToolCall{
		Index:    indexOf(0),
		Function: model.FunctionCall{Arguments: `{"scan":`},
	})
	acc.add(model.ToolCall{
		Index:    indexOf(0),
		Function: model.FunctionCall{Arguments: `true}`},
	})

	calls := acc.finish()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "get_wifi", calls[0].Function.Name)
	assert.Equal(t, `{"scan":true}`, calls[0].Function.Arguments)

	// Dispatch fires once, when id and name are complete, even though
	// arguments keep arriving afterwards.
	require.Len(t, dispatched, 1)
	assert.Equal(t, "get_wifi", dispatched[0].Function.Name)
}

func TestAccumulatorDispatchesExactlyOnce(t *testing.T) {
	count := 0
	acc := newToolCallAccumulator(func(model.ToolCall) { count++ })

	acc.add(model.ToolCall{Index: indexOf(0), ID: "c", Function: model.FunctionCall{Name: "n"}})
	acc.add(model.ToolCall{Index: indexOf(0), Function: model.FunctionCall{Arguments: "{}"}})
	acc.add(model.ToolCall{Index: indexOf(0), Function: model.FunctionCall{Arguments: ""}})

	assert.Equal(t, 1, count)
}

func TestAccumulatorIndexOrdering(t *testing.T) {
	acc := newToolCallAccumulator(nil)

	// Index 2 arrives before index 0 and 1.
	acc.add(model.ToolCall{Index: indexOf(2), ID: "c2", Function: model.FunctionCall{Name: "third", Arguments: "{}"}})
	acc.add(model.ToolCall{Index: indexOf(0), ID: "c0", Function: model.FunctionCall{Name: "first", Arguments: "{}"}})
	acc.add(model.ToolCall{Index: indexOf(1), ID: "c1", Function: model.FunctionCall{Name: "second", Arguments: "{}"}})

	calls := acc.finish()
	require.Len(t, calls, 3)
	assert.Equal(t, "first", calls[0].Function.Name)
	assert.Equal(t, "second", calls[1].Function.Name)
	assert.Equal(t, "third", calls[2].Function.Name)
}

func TestAccumulatorSkipsIncompleteEntries(t *testing.T) {
	acc := newToolCallAccumulator(nil)

	acc.add(model.ToolCall{Index: indexOf(0), ID: "c0", Function: model.FunctionCall{Name: "done", Arguments: "{}"}})
	// Index 1 never receives an id.
	acc.add(model.ToolCall{Index: indexOf(1), Function: model.FunctionCall{Name: "half"}})
	// Index 3 creates a skeleton at index 2 that receives nothing at all.
	acc.add(model.ToolCall{Index: indexOf(3), ID: "c3", Function: model.FunctionCall{Name: "last", Arguments: "{}"}})

	calls := acc.finish()
	require.Len(t, calls, 2)
	assert.Equal(t, "done", calls[0].Function.Name)
	assert.Equal(t, "last", calls[1].Function.Name)
}

func TestAccumulatorConflictingTypeLastWins(t *testing.T) {
	acc := newToolCallAccumulator(nil)

	acc.add(model.ToolCall{Index: indexOf(0), ID: "c", Type: "function", Function: model.FunctionCall{Name: "n"}})
	acc.add(model.ToolCall{Index: indexOf(0), Type: "tool"})

	calls := acc.finish()
	require.Len(t, calls, 1)
	assert.Equal(t, "tool", calls[0].Type)
}

func TestAccumulatorMissingIndexAddressesFirstEntry(t *testing.T) {
	acc := newToolCallAccumulator(nil)

	acc.add(model.ToolCall{ID: "c", Function: model.FunctionCall{Name: "n"}})
	acc.add(model.ToolCall{Function: model.FunctionCall{Arguments: "{}"}})

	calls := acc.finish()
	require.Len(t, calls, 1)
	assert.Equal(t, "c", calls[0].ID)
	assert.Equal(t, "{}", calls[0].Function.Arguments)
}

func TestAccumulatorDefaultsFunctionType(t *testing.T) {
	acc := newToolCallAccumulator(nil)

	acc.add(model.ToolCall{Index: indexOf(0), ID: "c", Function: model.FunctionCall{Name: "n", Arguments: "{}"}})

	calls := acc.finish()
	require.Len(t, calls, 1)
	assert.Equal(t, model.ToolCallTypeFunction, calls[0].Type)
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := newToolCallAccumulator(nil)
	assert.Nil(t, acc.finish())
}
