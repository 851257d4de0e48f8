//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package openaicompat implements the model.Model interface against an
// OpenAI-compatible chat-completions backend, either a local inference
// server or a hosted cloud endpoint. It covers the non-streaming and
// server-sent-event streaming paths, reconstructs structured tool calls
// from fragmented deltas, and falls back to inline <tool_call> extraction
// for models that emit calls as text.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/hearthd/hearth/event"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// Provider selects the backend flavor. The two differ in authentication
// and in how connectivity problems are reported.
type Provider string

// Provider kinds.
const (
	// ProviderLocal is an inference server on localhost or the LAN. It
	// needs no credentials and may legitimately be down at startup.
	ProviderLocal Provider = "local"
	// ProviderCloud is a hosted endpoint reached with a Bearer API key.
	ProviderCloud Provider = "cloud"
)

const (
	defaultTimeout = 120 * time.Second

	chatCompletionsPath = "/chat/completions"
	healthPath          = "/health"
	modelsPath          = "/models"
	setModelPath        = "/setModel"
)

// contextOverflowRe matches the local backend's context-window error text.
// The token count may or may not be parenthesized depending on the server
// version.
var contextOverflowRe = regexp.MustCompile(`Requested tokens? \(?(\d+)\)? exceeds? context window of (\d+)`)

// Client talks to one chat-completions backend.
type Client struct {
	baseURL   string
	modelName string
	provider  Provider
	apiKey    string
	timeout   time.Duration
	streaming bool
	inference model.InferenceConfig
	bus       *event.Bus
	client    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the backend base URL, e.g. "http://127.0.0.1:8080/v1".
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel sets the model identifier sent on every request.
func WithModel(name string) Option {
	return func(c *Client) {
		c.modelName = name
	}
}

// WithProvider sets the backend flavor. Default is ProviderLocal.
func WithProvider(p Provider) Option {
	return func(c *Client) {
		c.provider = p
	}
}

// WithAPIKey sets the Bearer token. Required for ProviderCloud.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the end-to-end timeout for one completion call,
// streaming included. Default is 120 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithStreaming enables or disables streamed completions for the client as
// a whole. When disabled, every request is issued non-streaming regardless
// of Request.Stream. Default is enabled.
func WithStreaming(enabled bool) Option {
	return func(c *Client) {
		c.streaming = enabled
	}
}

// WithInferenceConfig sets the sampling parameters applied to requests that
// carry none of their own.
func WithInferenceConfig(cfg model.InferenceConfig) Option {
	return func(c *Client) {
		c.inference = cfg
	}
}

// WithBus sets the event bus streaming deltas are published on. Without a
// bus the client still streams but emits no events.
func WithBus(bus *event.Bus) Option {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithHTTPClient replaces the underlying HTTP client. The caller owns the
// timeout configuration in that case.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// New creates a Client. It fails on an unknown provider kind or a missing
// base URL; reachability of the backend is checked separately by
// CheckConnection.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		provider:  ProviderLocal,
		timeout:   defaultTimeout,
		streaming: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch c.provider {
	case ProviderLocal, ProviderCloud:
	default:
		return nil, fmt.Errorf("unknown provider kind %q", c.provider)
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	for len(c.baseURL) > 0 && c.baseURL[len(c.baseURL)-1] == '/' {
		c.baseURL = c.baseURL[:len(c.baseURL)-1]
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Info implements model.Model.
func (c *Client) Info() model.Info {
	return model.Info{Name: c.modelName}
}

// Streaming reports whether the client issues streamed completions.
func (c *Client) Streaming() bool {
	return c.streaming
}

// CheckConnection probes the backend. For a local backend a failed probe is
// only a warning, the server is often started after the client. For a cloud
// backend a failed probe is a user-visible error since the usual causes are
// a bad API key or URL.
func (c *Client) CheckConnection(ctx context.Context) error {
	switch c.provider {
	case ProviderCloud:
		if err := c.probe(ctx, modelsPath); err != nil {
			return model.NewUserVisibleErrorf(
				"cloud LLM backend unreachable at %s: %v, check the API key and URL", c.baseURL, err)
		}
		log.Infof("cloud LLM backend reachable at %s", c.baseURL)
		return nil
	default:
		if err := c.probe(ctx, healthPath); err != nil {
			log.Warnf("local LLM backend not reachable at %s: %v", c.baseURL, err)
			return nil
		}
		log.Infof("local LLM backend healthy at %s", c.baseURL)
		return nil
	}
}

func (c *Client) probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

// GenerateContent implements model.Model. The request's Stream field
// selects the path; a client constructed with WithStreaming(false) forces
// every call non-streaming.
func (c *Client) GenerateContent(ctx context.Context, request *model.Request) (*model.Response, error) {
	if request == nil {
		return nil, fmt.Errorf("request is nil")
	}
	req := c.effectiveRequest(request)

	var (
		resp *model.Response
		err  error
	)
	if req.Stream {
		resp, err = c.generateStreaming(ctx, req)
	} else {
		resp, err = c.generateOnce(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	// When the caller asked for a stream but the client is pinned
	// non-streaming, it still expects message events; publish the full
	// text as one final segment.
	if request.Stream && !req.Stream {
		if content := resp.Content(); content != "" {
			c.publish(event.NewMessage(model.RoleAssistant.String(), content,
				event.WithStatus(event.StatusSuccess)))
		}
	}

	if resp.Usage != nil {
		log.Debugf("llm usage: prompt=%d completion=%d total=%d",
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	return resp, nil
}

// SetModel asks the local backend to load a different model. Cloud
// backends select the model per request, so this is a local-only call.
func (c *Client) SetModel(ctx context.Context, name string) error {
	if c.provider != ProviderLocal {
		return fmt.Errorf("set model is only supported by the local backend")
	}

	body, err := json.Marshal(map[string]string{"model": name})
	if err != nil {
		return fmt.Errorf("marshal set model request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+setModelPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create set model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.NewLogOnlyError("set model", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return model.NewLogOnlyError("set model",
			fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody)))
	}
	c.modelName = name
	log.Infof("local backend switched to model %q", name)
	return nil
}

// generateOnce issues the non-streaming completion and parses the full
// envelope.
func (c *Client) generateOnce(ctx context.Context, req *model.Request) (*model.Response, error) {
	resp, err := c.postCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewLogOnlyError("read completion response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.backendError(resp.StatusCode, body)
	}

	var out model.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, model.NewLogOnlyError("decode completion response", err)
	}
	if out.Error != nil && len(out.Choices) == 0 {
		return nil, model.NewLogOnlyError("completion", out.Error)
	}
	if len(out.Choices) == 0 {
		return nil, model.NewLogOnlyError("completion", fmt.Errorf("backend returned no choices"))
	}

	applyInlineFallback(&out.Choices[0].Message)
	out.Timestamp = time.Now()
	out.Done = true
	return &out, nil
}

// postCompletion sends the chat-completions request. For streaming calls
// the caller owns the response body.
func (c *Client) postCompletion(ctx context.Context, req *model.Request) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, model.NewLogOnlyError("marshal completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewLogOnlyError("create completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, model.NewLogOnlyError("completion request", err)
	}
	return resp, nil
}

// backendError maps a non-200 completion response to the error taxonomy.
// The one case users must see verbatim is the local backend rejecting a
// prompt that exceeds the loaded context window.
func (c *Client) backendError(status int, body []byte) error {
	msg := extractErrorMessage(body)

	if c.provider == ProviderLocal {
		if m := contextOverflowRe.FindStringSubmatch(msg); m != nil {
			requested, _ := strconv.Atoi(m[1])
			window, _ := strconv.Atoi(m[2])
			return model.NewUserVisibleErrorf(
				"requested tokens %d exceed context window of %d, reduce history or prompt",
				requested, window)
		}
	}
	return model.NewLogOnlyError("completion",
		fmt.Errorf("backend returned status %d: %s", status, msg))
}

// extractErrorMessage digs the human-readable message out of an error body.
// Backends disagree on the envelope: some nest an object under "error",
// some use a bare string, some return plain text.
func extractErrorMessage(body []byte) string {
	var withObject struct {
		Error *model.ResponseError `json:"error"`
	}
	if err := json.Unmarshal(body, &withObject); err == nil && withObject.Error != nil && withObject.Error.Message != "" {
		return withObject.Error.Message
	}
	var withString struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &withString); err == nil && withString.Error != "" {
		return withString.Error
	}
	return string(body)
}

// applyInlineFallback extracts tool calls that the model emitted as
// <tool_call> text instead of the structured field, and strips the marker
// regions from the content.
func applyInlineFallback(msg *model.Message) {
	if len(msg.ToolCalls) > 0 || !model.ContainsToolCallMarker(msg.Content) {
		return
	}
	msg.ToolCalls = model.ExtractToolCalls(msg.Content)
	msg.Content = model.StripToolCallRegions(msg.Content)
}

// effectiveRequest clones the request and fills in the client defaults:
// model name, sampling parameters when the request has none, and the
// streaming veto.
func (c *Client) effectiveRequest(request *model.Request) *model.Request {
	req := *request
	if req.Model == "" {
		req.Model = c.modelName
	}
	if isZeroInference(req.InferenceConfig) {
		req.InferenceConfig = c.inference
	}
	req.Stream = req.Stream && c.streaming
	return &req
}

func isZeroInference(cfg model.InferenceConfig) bool {
	return cfg.Temperature == nil && cfg.TopP == nil && cfg.TopK == nil &&
		cfg.MinP == nil && cfg.RepetitionPenalty == nil && cfg.MaxTokens == nil &&
		len(cfg.Stop) == 0
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// publish sends e to the bus when one is attached.
func (c *Client) publish(e *event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
