//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package mcp implements a Model-Context-Protocol client that runs one tool
// server as a child process and speaks newline-delimited JSON-RPC 2.0 over
// its stdio. The client owns the full server lifecycle: spawn, initialize
// handshake, capability discovery, tool invocation, and a staged teardown
// that never leaves the child (or its helpers) behind.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

var (
	// ErrNotReady is returned by RPC methods when the session is not in the
	// READY state.
	ErrNotReady = errors.New("mcp: session not ready")

	// ErrSessionClosed completes in-flight requests when the session shuts
	// down underneath them.
	ErrSessionClosed = errors.New("mcp: session closed")
)

// State is the lifecycle state of a session.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	defaultConnectTimeout = 30 * time.Second
	defaultInterpreter    = "python3"
)

// Client manages one MCP tool server session. RPC methods are only valid in
// the READY state; everything else returns ErrNotReady. A Client is safe for
// concurrent use.
type Client struct {
	scriptPath     string
	interpreter    string
	env            map[string]string
	connectTimeout time.Duration
	onNotification func(method string, params json.RawMessage)

	tr *transport

	mu         sync.Mutex
	state      State
	serverInfo ServerInfo
	tools      []Tool
	prompts    []Prompt
	resources  []Resource
}

// Option configures the client.
type Option func(*Client)

// WithInterpreter sets the interpreter used to launch the server script.
// Defaults to "python3".
func WithInterpreter(path string) Option {
	return func(c *Client) {
		c.interpreter = path
	}
}

// WithEnv adds environment variables to the server process on top of the
// inherited environment.
func WithEnv(env map[string]string) Option {
	return func(c *Client) {
		c.env = env
	}
}

// WithConnectTimeout bounds the whole Connect sequence: spawn, initialize,
// and capability discovery. Defaults to 30 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithNotificationHandler registers a handler for server notifications.
// The handler runs on the session's reader goroutine and must not block.
func WithNotificationHandler(h func(method string, params json.RawMessage)) Option {
	return func(c *Client) {
		c.onNotification = h
	}
}

// New creates a client for the tool server at scriptPath. The server is not
// started until Connect.
func New(scriptPath string, opts ...Option) *Client {
	c := &Client{
		scriptPath:     scriptPath,
		interpreter:    defaultInterpreter,
		connectTimeout: defaultConnectTimeout,
		state:          StateNew,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect spawns the server, runs the initialize handshake, and loads the
// tool catalog. On success the session is READY. A missing script is a
// user-visible configuration error; every other failure is operational.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateNew {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("mcp: connect in state %s", st)
	}
	c.state = StateConnecting
	c.mu.Unlock()
	log.Debugf("mcp: session state NEW -> CONNECTING")

	if _, err := os.Stat(c.scriptPath); err != nil {
		c.setState(StateFailed)
		return model.NewUserVisibleErrorf("tool server script not found: %s", c.scriptPath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	tr := newTransport()
	tr.onNotification = c.onNotification
	tr.onClosed = c.transportClosed
	if err := tr.start(c.interpreter, c.scriptPath, c.env); err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("mcp: spawn tool server: %w", err)
	}
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	info, err := c.initialize(ctx, tr)
	if err != nil {
		return c.failConnect(tr, fmt.Errorf("mcp: initialize: %w", err))
	}

	tools, prompts, resources, err := c.loadCatalog(ctx, tr)
	if err != nil {
		return c.failConnect(tr, err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		st := c.state
		c.mu.Unlock()
		tr.shutdown()
		return fmt.Errorf("mcp: connection lost during setup (state %s)", st)
	}
	c.serverInfo = info
	c.tools = tools
	c.prompts = prompts
	c.resources = resources
	c.state = StateReady
	c.mu.Unlock()
	log.Infof("mcp: session ready, server %q v%s (%d tools, %d prompts, %d resources)",
		info.Name, info.Version, len(tools), len(prompts), len(resources))
	return nil
}

// initialize runs the protocol handshake and resolves the server's display
// name.
func (c *Client) initialize(ctx context.Context, tr *transport) (ServerInfo, error) {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	raw, err := tr.call(ctx, methodInitialize, params)
	if err != nil {
		return ServerInfo{}, err
	}
	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ServerInfo{}, fmt.Errorf("decode result: %w", err)
	}
	if res.ProtocolVersion != "" && res.ProtocolVersion != protocolVersion {
		log.Warnf("mcp: server speaks protocol %s, client expects %s", res.ProtocolVersion, protocolVersion)
	}

	info := res.ServerInfo
	if isGenericServerName(info.Name) {
		info.Name = deriveServerName(c.scriptPath)
		log.Debugf("mcp: server reported generic name, derived %q from script", info.Name)
	}

	// The protocol requires this notification before regular traffic; a
	// server that rejects it can still serve requests, so failure is not
	// fatal.
	if err := tr.notify(methodInitialized, nil); err != nil {
		log.Warnf("mcp: send initialized notification: %v", err)
	}
	return info, nil
}

// loadCatalog fetches the server's descriptors. Tools are mandatory;
// prompts and resources degrade to empty lists.
func (c *Client) loadCatalog(ctx context.Context, tr *transport) ([]Tool, []Prompt, []Resource, error) {
	raw, err := tr.call(ctx, methodListTools, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	var tl listToolsResult
	if err := json.Unmarshal(raw, &tl); err != nil {
		return nil, nil, nil, fmt.Errorf("mcp: decode tool list: %w", err)
	}

	var pl listPromptsResult
	if raw, err := tr.call(ctx, methodListPrompts, nil); err != nil {
		log.Warnf("mcp: list prompts: %v", err)
	} else if err := json.Unmarshal(raw, &pl); err != nil {
		log.Warnf("mcp: decode prompt list: %v", err)
	}

	var rl listResourcesResult
	if raw, err := tr.call(ctx, methodListResources, nil); err != nil {
		log.Warnf("mcp: list resources: %v", err)
	} else if err := json.Unmarshal(raw, &rl); err != nil {
		log.Warnf("mcp: decode resource list: %v", err)
	}

	return tl.Tools, pl.Prompts, rl.Resources, nil
}

// failConnect tears the half-open session down and reports err.
func (c *Client) failConnect(tr *transport, err error) error {
	c.setState(StateFailed)
	tr.shutdown()
	return err
}

// transportClosed runs on the reader goroutine when the server's stdout
// closes. During teardown that is expected; in any live state it means the
// server died underneath us.
func (c *Client) transportClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateReady, StateConnecting:
		c.state = StateFailed
		log.Errorf("mcp: tool server connection lost, session state -> FAILED")
	default:
	}
}

// CallTool invokes a tool on the server and returns its raw result. Only
// valid in the READY state.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tr, err := c.readyTransport()
	if err != nil {
		return nil, err
	}
	raw, err := tr.call(ctx, methodCallTool, callToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("mcp: call tool %s: %w", name, err)
	}
	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: decode tool result for %s: %w", name, err)
	}
	return &res, nil
}

// GetPrompt expands a prompt template on the server.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	tr, err := c.readyTransport()
	if err != nil {
		return nil, err
	}
	raw, err := tr.call(ctx, methodGetPrompt, getPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("mcp: get prompt %s: %w", name, err)
	}
	var res GetPromptResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: decode prompt %s: %w", name, err)
	}
	return &res, nil
}

// ListTools re-fetches the tool catalog from the server and refreshes the
// cached copy.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	tr, err := c.readyTransport()
	if err != nil {
		return nil, err
	}
	raw, err := tr.call(ctx, methodListTools, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	var res listToolsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: decode tool list: %w", err)
	}

	c.mu.Lock()
	c.tools = res.Tools
	tools := copyTools(c.tools)
	c.mu.Unlock()
	return tools, nil
}

// ListPrompts re-fetches the prompt catalog from the server and refreshes
// the cached copy.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	tr, err := c.readyTransport()
	if err != nil {
		return nil, err
	}
	raw, err := tr.call(ctx, methodListPrompts, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list prompts: %w", err)
	}
	var res listPromptsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: decode prompt list: %w", err)
	}

	c.mu.Lock()
	c.prompts = res.Prompts
	prompts := make([]Prompt, len(c.prompts))
	copy(prompts, c.prompts)
	c.mu.Unlock()
	return prompts, nil
}

// ListResources re-fetches the resource catalog from the server and
// refreshes the cached copy.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	tr, err := c.readyTransport()
	if err != nil {
		return nil, err
	}
	raw, err := tr.call(ctx, methodListResources, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list resources: %w", err)
	}
	var res listResourcesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: decode resource list: %w", err)
	}

	c.mu.Lock()
	c.resources = res.Resources
	resources := make([]Resource, len(c.resources))
	copy(resources, c.resources)
	c.mu.Unlock()
	return resources, nil
}

// readyTransport returns the transport if and only if the session is READY.
func (c *Client) readyTransport() (*transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil, ErrNotReady
	}
	return c.tr, nil
}

// ServerInfo returns the connected server's identity. Zero until READY.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Tools returns a copy of the cached tool descriptors.
func (c *Client) Tools() []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyTools(c.tools)
}

// Prompts returns a copy of the cached prompt descriptors.
func (c *Client) Prompts() []Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Prompt, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// Resources returns a copy of the cached resource descriptors.
func (c *Client) Resources() []Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	log.Debugf("mcp: session state %s -> %s", prev, s)
}

// Close tears the session down: stdin close first, escalating signals if
// the server lingers, then a sweep for orphaned helper processes. Safe to
// call from any state and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed, StateClosing:
		c.mu.Unlock()
		return nil
	case StateNew:
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	tr := c.tr
	c.mu.Unlock()
	log.Debugf("mcp: session state -> CLOSING")

	if tr != nil {
		tr.shutdown()
	}
	if n := sweepOrphans(); n > 0 {
		log.Warnf("mcp: killed %d orphaned tool server process(es)", n)
	}

	c.mu.Lock()
	c.state = StateClosed
	c.tools = nil
	c.prompts = nil
	c.resources = nil
	c.mu.Unlock()
	log.Infof("mcp: session closed")
	return nil
}

func copyTools(in []Tool) []Tool {
	out := make([]Tool, len(in))
	copy(out, in)
	return out
}
