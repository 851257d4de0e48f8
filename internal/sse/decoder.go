//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package sse decodes line-framed server-sent event streams as emitted by
// OpenAI-compatible completion endpoints.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/hearthd/hearth/log"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// ErrDone reports that the stream terminated with the [DONE] sentinel.
var ErrDone = errors.New("sse: stream done")

// Decoder reads "data:" payloads from a server-sent event stream one line
// at a time. Lines are buffered as bytes, so multi-byte runes split across
// network chunks reassemble before any decoding happens.
type Decoder struct {
	r   *bufio.Reader
	err error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the payload of the next data line with the prefix and
// surrounding whitespace removed. It returns ErrDone when the [DONE]
// sentinel arrives and io.EOF when the underlying stream ends without one;
// callers decide whether a missing sentinel is worth a warning. Empty
// lines are skipped silently, other non-data lines are skipped with a
// warning.
func (d *Decoder) Next() ([]byte, error) {
	for {
		if d.err != nil {
			return nil, d.err
		}

		line, err := d.r.ReadString('\n')
		if err != nil {
			// A final line without a trailing newline still counts;
			// surface the error on the following call.
			d.err = err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if d.err != nil {
				return nil, d.err
			}
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			log.Warnf("sse: skipping unexpected line: %q", line)
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == doneSentinel {
			return nil, ErrDone
		}
		return []byte(payload), nil
	}
}
