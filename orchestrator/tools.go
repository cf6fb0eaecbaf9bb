package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxToolDescriptionLen is the hard cap on a tool's human-readable
// description, enforced at registration (§4.1).
const maxToolDescriptionLen = 1024

// ToolDefinition is a tool's wire-level advertisement: name, description, and
// JSON Schema for its input.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ToolHandler is a single named tool capability.
type ToolHandler interface {
	Definition() ToolDefinition
	Call(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolRegistry maps ToolName -> ToolHandler and dispatches a parsed call to
// its implementation (§4.1). Represent tools as polymorphic over
// describe/schema/call; no reflection (§9).
type ToolRegistry struct {
	handlers map[string]ToolHandler
	order    []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{handlers: make(map[string]ToolHandler)}
}

// Register adds a tool handler. Returns ErrDuplicateTool if the name is
// already registered (startup error, per the decided Open Question), or an
// error if the description exceeds maxToolDescriptionLen.
func (r *ToolRegistry) Register(h ToolHandler) error {
	def := h.Definition()
	if len(def.Description) > maxToolDescriptionLen {
		return fmt.Errorf("orchestrator: tool %q description exceeds %d chars", def.Name, maxToolDescriptionLen)
	}
	if _, dup := r.handlers[def.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
	}
	r.handlers[def.Name] = h
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister registers h and panics on error. Used for built-in tools
// registered once at startup (§9 "Registration happens once at startup from
// a static list").
func (r *ToolRegistry) MustRegister(h ToolHandler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Has reports whether name resolves to a registered tool.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Definitions returns every registered ToolDefinition, in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name].Definition())
	}
	return out
}

// DefinitionsFor returns definitions restricted to names, preserving the
// order of names and skipping any that do not resolve.
func (r *ToolRegistry) DefinitionsFor(names []string) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(names))
	for _, n := range names {
		if h, ok := r.handlers[n]; ok {
			out = append(out, h.Definition())
		}
	}
	return out
}

// Execute dispatches a single ToolCall. A ToolExecutionError cause is folded
// into the returned ToolResult{IsError: true}; an unknown tool name is
// likewise reported as a recoverable ToolResult, never as a Go error (§7: ToolExecution is
// non-fatal, the loop continues so the LLM can recover).
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) ToolResult {
	h, ok := r.handlers[call.Name]
	if !ok {
		return ToolResult{Name: call.Name, CallID: call.ID, Content: fmt.Sprintf("unknown tool: %s", call.Name), IsError: true}
	}
	content, err := h.Call(ctx, call.Arguments)
	if err != nil {
		return ToolResult{Name: call.Name, CallID: call.ID, Content: err.Error(), IsError: true}
	}
	return ToolResult{Name: call.Name, CallID: call.ID, Content: content}
}

// jsonSchema is a tiny helper for building an object JSON Schema literal
// inline at tool-definition time without a templating dependency.
func jsonSchema(props string, required ...string) json.RawMessage {
	req, _ := json.Marshal(required)
	return json.RawMessage(fmt.Sprintf(`{"type":"object","properties":{%s},"required":%s}`, props, req))
}
