//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkWritesNDJSON(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	sink.Handle(NewMessage("assistant", "hello"))
	sink.Handle(NewAction("get_time", "{}"))
	require.NoError(t, sink.Close())

	file, err := os.Open(sink.Path())
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, TypeMessage, events[0].Type)
	assert.Equal(t, "hello", events[0].Content)
	assert.Equal(t, TypeAction, events[1].Type)
	assert.Equal(t, "get_time", events[1].ToolName)
}

func TestFileSinkHandleAfterClose(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.NotPanics(t, func() { sink.Handle(NewInfo("late")) })
	assert.NoError(t, sink.Close())
}
