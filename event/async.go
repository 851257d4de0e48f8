//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"github.com/panjf2000/ants/v2"

	"github.com/hearthd/hearth/log"
)

// NewAsyncHandler wraps h so each event is handled on the worker pool
// instead of the publisher's goroutine. Use it for slow sinks such as
// remote logging. When the pool cannot accept more work the event is
// dropped with a warning rather than stalling the publisher.
func NewAsyncHandler(h Handler, pool *ants.Pool) Handler {
	return func(e *Event) {
		if err := pool.Submit(func() { h(e) }); err != nil {
			log.Warnf("event: async handler saturated, dropping %s event %s: %v", e.Type, e.ID, err)
		}
	}
}
