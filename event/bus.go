//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"sync"
	"sync/atomic"

	"github.com/hearthd/hearth/log"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block; wrap slow sinks with
// NewAsyncHandler.
type Handler func(*Event)

type subscriber struct {
	id int64
	h  Handler
}

// Bus fans events out to subscribers. Publish walks a copy-on-write
// snapshot of the subscriber list, so subscriptions never contend with
// publishers and handlers may unsubscribe themselves mid-dispatch.
type Bus struct {
	mu     sync.Mutex // serializes subscription changes
	nextID int64
	subs   atomic.Pointer[[]subscriber]
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	next := b.cloneSubsLocked(1)
	next = append(next, subscriber{id: id, h: h})
	b.subs.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

// Publish synchronously delivers e to every subscriber. A handler that
// panics is logged and skipped; the remaining handlers still run.
func (b *Bus) Publish(e *Event) {
	if e == nil {
		return
	}
	subs := b.subs.Load()
	if subs == nil {
		return
	}
	for _, s := range *subs {
		dispatch(s.h, e)
	}
}

func dispatch(h Handler, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("event: handler panicked on %s event %s: %v", e.Type, e.ID, r)
		}
	}()
	h(e)
}

func (b *Bus) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.subs.Load()
	if cur == nil {
		return
	}
	next := make([]subscriber, 0, len(*cur))
	for _, s := range *cur {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

// cloneSubsLocked copies the current subscriber slice with room for extra
// entries. Callers must hold b.mu.
func (b *Bus) cloneSubsLocked(extra int) []subscriber {
	cur := b.subs.Load()
	if cur == nil {
		return make([]subscriber, 0, extra)
	}
	next := make([]subscriber, len(*cur), len(*cur)+extra)
	copy(next, *cur)
	return next
}
