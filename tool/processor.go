//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// emptyObjectSchema is sent for tools that declare no input schema; some
// backends reject a function spec without parameters.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Processor caches tool descriptors and dispatches tool calls to an MCP
// session. Safe for concurrent use, though the runner is its only writer.
type Processor struct {
	caller Caller

	mu      sync.RWMutex
	decls   []Declaration
	schemas map[string]*jsonschema.Schema
}

// NewProcessor creates a processor over the given session. The catalog is
// empty until Refresh.
func NewProcessor(caller Caller) *Processor {
	return &Processor{
		caller:  caller,
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Refresh replaces the descriptor cache with the server's current catalog.
// Descriptors whose schema does not compile stay callable; they just skip
// argument validation.
func (p *Processor) Refresh(ctx context.Context) error {
	tools, err := p.caller.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("refresh tool catalog: %w", err)
	}

	decls := make([]Declaration, 0, len(tools))
	schemas := make(map[string]*jsonschema.Schema, len(tools))
	for _, t := range tools {
		decls = append(decls, Declaration{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
		if len(t.InputSchema) == 0 {
			continue
		}
		schema, err := compileSchema(t.Name, t.InputSchema)
		if err != nil {
			log.Warnf("tool: input schema for %s does not compile: %v", t.Name, err)
			continue
		}
		schemas[t.Name] = schema
	}

	p.mu.Lock()
	p.decls = decls
	p.schemas = schemas
	p.mu.Unlock()
	log.Debugf("tool: catalog refreshed, %d tools", len(decls))
	return nil
}

// Declarations returns a copy of the cached descriptors.
func (p *Processor) Declarations() []Declaration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Declaration, len(p.decls))
	copy(out, p.decls)
	return out
}

// FormatForLLM projects the catalog into the function-call shape of the
// chat-completions request.
func (p *Processor) FormatForLLM() []model.Tool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Tool, 0, len(p.decls))
	for _, d := range p.decls {
		params := d.InputSchema
		if len(params) == 0 {
			params = emptyObjectSchema
		}
		out = append(out, model.Tool{
			Type: model.ToolCallTypeFunction,
			Function: model.FunctionSpec{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// Execute runs one tool call. The returned string is always ready to fold
// into history as the tool-result content; a non-nil error marks the call
// as failed. Invalid argument JSON fails before any dispatch. Schema
// violations only warn: the server owns final argument validation.
func (p *Processor) Execute(ctx context.Context, call model.ToolCall) (string, error) {
	name := call.Function.Name

	args, err := call.ParseArguments()
	if err != nil {
		err = fmt.Errorf("invalid arguments for %s: %w", name, err)
		return failText(err), err
	}

	if schema := p.schema(name); schema != nil {
		if err := schema.Validate(anyArgs(args)); err != nil {
			log.Warnf("tool: arguments for %s fail schema validation: %v", name, err)
		}
	}

	res, err := p.caller.CallTool(ctx, name, args)
	if err != nil {
		return failText(err), err
	}
	text := res.Text()
	if res.IsError {
		if text == "" {
			text = fmt.Sprintf("tool %s failed without detail", name)
		}
		return text, fmt.Errorf("tool %s: %s", name, text)
	}
	return text, nil
}

func (p *Processor) schema(name string) *jsonschema.Schema {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.schemas[name]
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	url := name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

// anyArgs widens the argument map for schema validation, which inspects
// decoded JSON values.
func anyArgs(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

func failText(err error) string {
	return "tool failed: " + err.Error()
}
