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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/event"
	"github.com/hearthd/hearth/internal/sse"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// generateStreaming issues the completion with stream enabled, consumes the
// whole event stream and synthesizes the final response from the
// accumulated deltas.
func (c *Client) generateStreaming(ctx context.Context, req *model.Request) (*model.Response, error) {
	resp, err := c.postCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, c.backendError(resp.StatusCode, body)
	}
	return c.consumeStream(ctx, resp.Body)
}

func (c *Client) consumeStream(ctx context.Context, body io.Reader) (*model.Response, error) {
	dec := sse.NewDecoder(body)
	seg := &textSegmenter{publish: c.publish}
	acc := newToolCallAccumulator(func(call model.ToolCall) {
		c.publish(event.NewAction(call.Function.Name, call.Function.Arguments))
	})

	var (
		respID       string
		created      int64
		modelName    string
		finishReason *string
		usage        *model.Usage
	)

	for {
		payload, err := dec.Next()
		if err != nil {
			if errors.Is(err, sse.ErrDone) {
				break
			}
			if errors.Is(err, io.EOF) {
				log.Warnf("stream ended without [DONE] sentinel")
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, model.NewLogOnlyError("read completion stream", err)
		}

		var chunk model.Response
		if err := json.Unmarshal(payload, &chunk); err != nil {
			log.Errorf("undecodable stream payload %q: %v", payload, err)
			c.publish(event.NewError(fmt.Sprintf("undecodable stream payload: %v", err)))
			continue
		}
		if chunk.ID != "" {
			respID = chunk.ID
		}
		if chunk.Created != 0 {
			created = chunk.Created
		}
		if chunk.Model != "" {
			modelName = chunk.Model
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Error != nil {
			log.Errorf("backend reported stream error: %s", chunk.Error.Message)
			c.publish(event.NewError(chunk.Error.Message))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			finishReason = choice.FinishReason
		}
		for _, delta := range choice.Delta.ToolCalls {
			acc.add(delta)
		}
		if choice.Delta.Content != "" {
			seg.add(choice.Delta.Content)
		}
	}

	seg.finish()

	content := seg.content()
	toolCalls := acc.finish()
	if len(toolCalls) == 0 && model.ContainsToolCallMarker(content) {
		toolCalls = model.ExtractToolCalls(content)
		content = model.StripToolCallRegions(content)
	}

	return &model.Response{
		ID:      respID,
		Object:  model.ObjectTypeChatCompletion,
		Created: created,
		Model:   modelName,
		Choices: []model.Choice{{
			Message: model.Message{
				Role:      model.RoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
			},
			FinishReason: finishReason,
		}},
		Usage:     usage,
		Timestamp: time.Now(),
		Done:      true,
	}, nil
}

// textSegmenter routes streamed text deltas to bus events. Prose shares a
// single MESSAGE id until an inline tool-call marker appears in the
// accumulated text; the prose segment is then finalized with SUCCESS and
// the rest of the stream is published as an ACTION segment under a fresh
// id.
type textSegmenter struct {
	publish    func(*event.Event)
	full       strings.Builder
	seg        strings.Builder
	segID      string
	actionID   string
	markerSeen bool
}

func (s *textSegmenter) add(delta string) {
	s.full.WriteString(delta)

	if s.markerSeen {
		s.publish(event.New(event.TypeAction,
			event.WithID(s.actionID),
			event.WithStatus(event.StatusInProgress),
			event.WithContent(delta)))
		return
	}

	s.seg.WriteString(delta)
	segText := s.seg.String()
	if !model.ContainsToolCallMarker(segText) {
		s.publish(event.NewMessage(model.RoleAssistant.String(), delta,
			event.WithID(s.messageID()),
			event.WithStatus(event.StatusInProgress)))
		return
	}

	// The model switched from prose to an inline tool call. Markers can
	// split across deltas, so the boundary is found on the accumulated
	// segment, not on this delta.
	s.markerSeen = true
	boundary := strings.Index(segText, model.ToolCallOpenTag)
	prose := segText[:boundary]
	if s.segID != "" || prose != "" {
		s.publish(event.NewMessage(model.RoleAssistant.String(), prose,
			event.WithID(s.messageID()),
			event.WithStatus(event.StatusSuccess)))
	}

	s.actionID = uuid.New().String()
	s.publish(event.New(event.TypeAction,
		event.WithID(s.actionID),
		event.WithStatus(event.StatusInProgress),
		event.WithContent(segText[boundary:])))
}

// finish closes a prose segment that reached the end of the stream without
// a marker.
func (s *textSegmenter) finish() {
	if s.markerSeen || s.segID == "" {
		return
	}
	s.publish(event.NewMessage(model.RoleAssistant.String(), s.seg.String(),
		event.WithID(s.segID),
		event.WithStatus(event.StatusSuccess)))
}

// content returns all text received on the stream, marker regions included.
func (s *textSegmenter) content() string {
	return s.full.String()
}

func (s *textSegmenter) messageID() string {
	if s.segID == "" {
		s.segID = uuid.New().String()
	}
	return s.segID
}
