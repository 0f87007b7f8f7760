// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names of the smart surface advertised to clients.
const (
	DiscoverToolName = "discover"
	ExecuteToolName  = "execute"
)

// defaultDiscoverDescription is used unless the operator overrides it.
// The execute description is fixed.
const (
	defaultDiscoverDescription = "Search the available tools by describing what you need in natural language. " +
		"Returns matching tools with their toolId, method, description and input schema. " +
		"Call execute with a returned toolId and method to run one."

	executeDescription = "Execute a tool found via discover. Provide the toolId, the method, " +
		"and the arguments object for the method."
)

// Fixed input schemas of the two-tool surface.
var (
	discoverInputSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"queries": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Natural language descriptions of the tools to find"
			}
		},
		"required": ["queries"]
	}`)

	executeInputSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"toolId": {"type": "string", "description": "The toolId returned by discover"},
			"method": {"type": "string", "description": "The method returned by discover"},
			"args": {"type": "object", "description": "Arguments for the method"}
		},
		"required": ["toolId", "method", "args"]
	}`)
)

// ServerTools returns the fixed two-tool catalogue advertised to clients
// when smart mode is active. Whatever the size of the bound catalogue,
// clients only ever see discover and execute.
func (p *SmartProxy) ServerTools() []server.ServerTool {
	discoverDescription := defaultDiscoverDescription
	if p.cfg.DiscoverDescription != "" {
		discoverDescription = p.cfg.DiscoverDescription
	}

	return []server.ServerTool{
		{
			Tool: mcp.Tool{
				Name:           DiscoverToolName,
				Description:    discoverDescription,
				RawInputSchema: discoverInputSchema,
			},
			Handler: p.handleDiscover,
		},
		{
			Tool: mcp.Tool{
				Name:           ExecuteToolName,
				Description:    executeDescription,
				RawInputSchema: executeInputSchema,
			},
			Handler: p.handleExecute,
		},
	}
}

func (p *SmartProxy) handleDiscover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	rawQueries, ok := args["queries"].([]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments: queries must be an array of strings"), nil
	}
	queries := make([]string, 0, len(rawQueries))
	for _, q := range rawQueries {
		s, ok := q.(string)
		if !ok {
			return mcp.NewToolResultError("invalid arguments: queries must be an array of strings"), nil
		}
		queries = append(queries, s)
	}

	text, err := p.Discover(ctx, queries)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discover failed: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

func (p *SmartProxy) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	toolID, ok := args["toolId"].(string)
	if !ok || toolID == "" {
		return mcp.NewToolResultError("invalid arguments: toolId is required"), nil
	}
	method, ok := args["method"].(string)
	if !ok || method == "" {
		return mcp.NewToolResultError("invalid arguments: method is required"), nil
	}
	callArgs, _ := args["args"].(map[string]any)

	result, err := p.Execute(ctx, toolID, method, callArgs)
	if err != nil {
		// Exposing the error to the MCP client is important if you want it
		// to correct its behavior: the not-found message tells it to call
		// discover, and downstream failures are passed through untouched.
		return mcp.NewToolResultError(err.Error()), nil
	}

	return result, nil
}
