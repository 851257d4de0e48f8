//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()

	var first, second []string
	bus.Subscribe(func(e *Event) { first = append(first, e.Content) })
	bus.Subscribe(func(e *Event) { second = append(second, e.Content) })

	bus.Publish(NewInfo("one"))
	bus.Publish(NewInfo("two"))

	assert.Equal(t, []string{"one", "two"}, first)
	assert.Equal(t, []string{"one", "two"}, second)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var n int
	unsubscribe := bus.Subscribe(func(*Event) { n++ })

	bus.Publish(NewInfo("a"))
	unsubscribe()
	bus.Publish(NewInfo("b"))

	assert.Equal(t, 1, n)

	// A second call must be harmless.
	unsubscribe()
	bus.Publish(NewInfo("c"))
	assert.Equal(t, 1, n)
}

func TestBusPanickingHandlerDoesNotStopFanOut(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(func(*Event) { panic("sink exploded") })

	var delivered int
	bus.Subscribe(func(*Event) { delivered++ })

	require.NotPanics(t, func() { bus.Publish(NewInfo("x")) })
	assert.Equal(t, 1, delivered)
}

func TestBusHandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus()

	var calls int
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(*Event) {
		calls++
		unsubscribe()
	})

	bus.Publish(NewInfo("a"))
	bus.Publish(NewInfo("b"))

	assert.Equal(t, 1, calls)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() { bus.Publish(NewInfo("nobody listening")) })
	assert.NotPanics(t, func() { bus.Publish(nil) })
}
