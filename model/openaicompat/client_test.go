//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/model"
)

func TestNewValidation(t *testing.T) {
	_, err := New(WithBaseURL("http://localhost:1"), WithProvider("remote"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	_, err = New(WithModel("m"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	c, err := New(WithBaseURL("http://localhost:1/"), WithModel("m"))
	require.NoError(t, err)
	assert.Equal(t, "m", c.Info().Name)
	assert.Equal(t, "http://localhost:1", c.baseURL)
	assert.True(t, c.Streaming())
}

func TestCheckConnectionLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithModel("m"))
	require.NoError(t, err)
	assert.NoError(t, c.CheckConnection(context.Background()))
}

func TestCheckConnectionLocalDownIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	c, err := New(WithBaseURL(srv.URL), WithModel("m"))
	require.NoError(t, err)
	assert.NoError(t, c.CheckConnection(context.Background()))
}

func TestCheckConnectionCloud(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	good, err := New(WithBaseURL(srv.URL), WithProvider(ProviderCloud), WithAPIKey("sk-good"))
	require.NoError(t, err)
	assert.NoError(t, good.CheckConnection(context.Background()))

	bad, err := New(WithBaseURL(srv.URL), WithProvider(ProviderCloud), WithAPIKey("sk-bad"))
	require.NoError(t, err)
	err = bad.CheckConnection(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsUserVisible(err))
}

func TestGenerateContentNonStreaming(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "resp-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer srv.Close()

	temp := 0.2
	c, err := New(
		WithBaseURL(srv.URL),
		WithModel("test-model"),
		WithInferenceConfig(model.InferenceConfig{Temperature: &temp}),
	)
	require.NoError(t, err)

	resp, err := c.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, "hi", resp.Content())
	assert.Empty(t, resp.ToolCalls())
	assert.True(t, resp.Done)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	// Client defaults land on the wire.
	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	inference, ok := gotBody["inference_configs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.2, inference["temperature"])
}

func TestGenerateContentInlineFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "resp-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {
				"role": "assistant",
				"content": "On it. <tool_call>{\"name\":\"speak_text\",\"arguments\":{\"text\":\"hi\"}}</tool_call>"
			}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithModel("m"))
	require.NoError(t, err)

	resp, err := c.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("say hi")},
	})
	require.NoError(t, err)

	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "speak_text", calls[0].Function.Name)
	assert.Equal(t, "On it.", resp.Content())
}

func TestGenerateContentContextOverflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Requested tokens (5000) exceed context window of 4096"}}`))
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithModel("m"))
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hello")},
	})
	require.Error(t, err)
	assert.True(t, model.IsUserVisible(err))
	assert.Equal(t, "requested tokens 5000 exceed context window of 4096, reduce history or prompt",
		model.UserMessage(err))
}

func TestGenerateContentOverflowOnlyForLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Requested tokens (5000) exceed context window of 4096"}}`))
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithProvider(ProviderCloud), WithAPIKey("k"), WithModel("m"))
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hello")},
	})
	require.Error(t, err)
	assert.False(t, model.IsUserVisible(err))
}

func TestGenerateContentServerErrorIsLogOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithModel("m"))
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hello")},
	})
	require.Error(t, err)
	assert.False(t, model.IsUserVisible(err))
	assert.Equal(t, model.GenericFailureMessage, model.UserMessage(err))

	var logOnly *model.LogOnlyError
	assert.ErrorAs(t, err, &logOnly)
}

func TestSetModel(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/setModel", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(WithBaseURL(srv.URL), WithModel("m1"))
	require.NoError(t, err)

	require.NoError(t, c.SetModel(context.Background(), "m2"))
	assert.Equal(t, "m2", got["model"])
	assert.Equal(t, "m2", c.Info().Name)
}

func TestSetModelCloudUnsupported(t *testing.T) {
	c, err := New(WithBaseURL("http://localhost:1"), WithProvider(ProviderCloud), WithAPIKey("k"))
	require.NoError(t, err)
	assert.Error(t, c.SetModel(context.Background(), "m"))
}

func TestExtractErrorMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested object", `{"error": {"message": "bad request"}}`, "bad request"},
		{"bare string", `{"error": "bad request"}`, "bad request"},
		{"plain text", "service unavailable", "service unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractErrorMessage([]byte(tt.body)))
		})
	}
}
