//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserVisibleError(t *testing.T) {
	err := NewUserVisibleErrorf("context window of %d exceeded", 4096)
	assert.True(t, IsUserVisible(err))
	assert.Equal(t, "context window of 4096 exceeded", UserMessage(err))

	// Visibility survives wrapping.
	wrapped := fmt.Errorf("generate: %w", err)
	assert.True(t, IsUserVisible(wrapped))
	assert.Equal(t, "context window of 4096 exceeded", UserMessage(wrapped))
}

func TestLogOnlyError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewLogOnlyError("health check", cause)
	assert.False(t, IsUserVisible(err))
	assert.Equal(t, "health check: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	// Anything not user visible maps to the generic message.
	assert.Equal(t, GenericFailureMessage, UserMessage(err))
	assert.Equal(t, GenericFailureMessage, UserMessage(errors.New("boom")))
}

func TestUserMessageNil(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
}
