//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package debug provides an HTTP attach surface for frontends and tooling:
// a health probe, a server-sent-events tap of the event bus, and user
// message injection. It is meant to be mounted on a loopback listener
// during development; nothing here authenticates callers.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hearthd/hearth/event"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// eventTapBuffer is the per-client queue between the bus and a slow SSE
// consumer. Overflow drops events rather than blocking publishers.
const eventTapBuffer = 256

// MessageHandler runs one user turn. The debug server serializes calls.
type MessageHandler func(ctx context.Context, content string) error

// Server exposes the debug HTTP endpoints over an event bus and a message
// handler.
type Server struct {
	router    *mux.Router
	bus       *event.Bus
	onMessage MessageHandler
	origins   []string

	runMu sync.Mutex // one injected turn at a time
}

// Option configures the Server.
type Option func(*Server)

// WithMessageHandler wires POST /message to h. Without a handler the
// endpoint answers 503.
func WithMessageHandler(h MessageHandler) Option {
	return func(s *Server) { s.onMessage = h }
}

// WithAllowedOrigins replaces the CORS allow-list. The default allows any
// origin, matching the surface's development-only purpose.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a debug server over bus.
func New(bus *event.Bus, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		bus:     bus,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/message", s.handleMessage).Methods(http.MethodPost)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/message", preflight).Methods(http.MethodOptions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// handleEvents re-broadcasts the bus over SSE until the client goes away.
// The tap is buffered: bus handlers must never block a publisher, so a
// consumer that cannot keep up loses events instead.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.bus == nil {
		http.Error(w, "no event bus attached", http.StatusServiceUnavailable)
		return
	}

	ch := make(chan *event.Event, eventTapBuffer)
	unsubscribe := s.bus.Subscribe(func(e *event.Event) {
		select {
		case ch <- e:
		default:
			log.Warnf("debug: event tap %s overflowed, dropping %s event", r.RemoteAddr, e.Type)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	log.Debugf("debug: event tap attached from %s", r.RemoteAddr)
	for {
		select {
		case <-r.Context().Done():
			log.Debugf("debug: event tap %s detached", r.RemoteAddr)
			return
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				log.Errorf("debug: marshal event %s: %v", e.ID, err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

type messageRequest struct {
	Content string `json:"content"`
}

// handleMessage injects one user turn and blocks until it finishes; the
// turn's output arrives on the /events stream.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.onMessage == nil {
		http.Error(w, "no message handler configured", http.StatusServiceUnavailable)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	s.runMu.Lock()
	err := s.onMessage(r.Context(), req.Content)
	s.runMu.Unlock()

	if err != nil {
		if model.IsUserVisible(err) {
			http.Error(w, model.UserMessage(err), http.StatusUnprocessableEntity)
			return
		}
		log.Errorf("debug: injected turn failed: %v", err)
		http.Error(w, model.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
