package forge

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxToolDescriptionLen is the hard cap on a tool's human-readable
// description, enforced at registration time.
const maxToolDescriptionLen = 1024

// Tool defines an agent capability with one or more tool functions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a single tool execution. Name and CallID tie
// the result back to the ToolCall it answers; CallID must match a ToolCall.ID
// that appears earlier in the same Context. IsError marks a recoverable
// failure: the LLM sees Content as the error message and may retry or adapt,
// the turn does not fail.
type ToolResult struct {
	Name    string `json:"name,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// errorResult builds a ToolResult carrying a recoverable failure message.
func errorResult(msg string) ToolResult {
	return ToolResult{Content: msg, IsError: true}
}

// ToolRegistry holds all registered tools and dispatches execution by name.
// Dispatch is a linear scan over registered tools (§9 "Dynamic tool
// dispatch": represent tools as polymorphic over describe/schema/call, do
// not rely on reflection).
type ToolRegistry struct {
	tools []Tool
	names map[string]bool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{names: make(map[string]bool)}
}

// Add registers a tool, validating every definition it exposes.
// Add panics on a duplicate tool name or an over-length description: both
// are configuration bugs caught once at startup, never at request time.
func (r *ToolRegistry) Add(t Tool) {
	if r.names == nil {
		r.names = make(map[string]bool)
	}
	for _, d := range t.Definitions() {
		if len(d.Description) > maxToolDescriptionLen {
			panic(fmt.Sprintf("forge: tool %q description exceeds %d chars", d.Name, maxToolDescriptionLen))
		}
		if r.names[d.Name] {
			panic(fmt.Sprintf("forge: duplicate tool registration: %q", d.Name))
		}
		r.names[d.Name] = true
	}
	r.tools = append(r.tools, t)
}

// AllDefinitions returns tool definitions from all registered tools.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Has reports whether name resolves to a registered tool.
func (r *ToolRegistry) Has(name string) bool {
	return r.names[name]
}

// Execute dispatches a tool call by name.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				res, err := t.Execute(ctx, name, args)
				res.Name = name
				return res, err
			}
		}
	}
	return errorResult("unknown tool: " + name), nil
}
