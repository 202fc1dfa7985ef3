// Package mcp exposes ChronoQuest to MCP (Model Context Protocol) agents.
//
// There are two ways in:
//
//  1. Full MCP Server (server.go), the usual choice. NewServer returns a
//     complete stdio server built on mcp-go.
//
//  2. Registry Pattern (tools.go). RegisterTools hands the same tools to an
//     agent framework that already runs its own MCP registry.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Registry is an interface for MCP tool registration.
// Implement this interface to integrate ChronoQuest with your MCP framework.
type Registry interface {
	Register(tool Tool)
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string
	Description string
	Parameters  Schema
	Handler     Handler
}

// Schema defines the JSON schema for tool parameters.
type Schema map[string]ParameterDef

// ParameterDef defines a single parameter.
type ParameterDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Handler is a function that handles tool invocations.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

var questParam = ParameterDef{
	Type:        "string",
	Description: "Session ref (Q1) or task id",
	Required:    true,
}

// toolSchemas mirrors the parameters registered in server.go.
var toolSchemas = map[string]Schema{
	"quest_today": {
		"refresh": {Type: "boolean", Description: "Reload from the server first", Default: true},
	},
	"quest_complete": {
		"quest":        questParam,
		"fatigue_item": {Type: "string", Description: "Inventory item id of a fatigue_reduce consumable"},
		"xp_item":      {Type: "string", Description: "Inventory item id of an xp_boost consumable"},
	},
	"quest_counter": {
		"quest": questParam,
		"delta": {Type: "integer", Description: "Amount to add; negative subtracts", Default: 1},
	},
	"quest_sync":   {},
	"quest_status": {},
	"quest_story":  {},
}

// RegisterTools registers the server's tools with an external registry.
// Handlers return a *ToolResult; a tool-level failure is reported through
// ToolResult.IsError, not as an error.
func RegisterTools(registry Registry, srv *Server) {
	for _, info := range srv.ListTools() {
		registry.Register(Tool{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  toolSchemas[info.Name],
			Handler:     makeHandler(srv, info.Name),
		})
	}
}

func makeHandler(srv *Server, name string) Handler {
	return func(ctx context.Context, rawParams json.RawMessage) (any, error) {
		args := map[string]any{}
		if len(rawParams) > 0 && string(rawParams) != "null" {
			if err := json.Unmarshal(rawParams, &args); err != nil {
				return nil, fmt.Errorf("parse params: %w", err)
			}
		}
		return srv.CallTool(ctx, name, args)
	}
}
