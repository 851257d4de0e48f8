//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hearthd/hearth/log"
)

// FileSink appends every event it handles to a newline-delimited JSON
// file. Events are transient on the bus; the sink is the optional durable
// record, meant to be wired only when debug logging is enabled.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens an append-only event log named events-<timestamp>.ndjson
// under dir, creating dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	name := fmt.Sprintf("events-%s.ndjson", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileSink{file: file, enc: json.NewEncoder(file)}, nil
}

// Path returns the location of the log file.
func (s *FileSink) Path() string {
	return s.file.Name()
}

// Handle writes e as one JSON line. Write failures are logged; the sink is
// best-effort and never disturbs the publisher.
func (s *FileSink) Handle(e *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(e); err != nil {
		log.Errorf("event: write to %s failed: %v", s.file.Name(), err)
	}
}

// Close flushes and closes the underlying file. Events handled after Close
// are dropped.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return nil
	}
	s.enc = nil
	return s.file.Close()
}
