package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventDispatchTool implements event_dispatch (§4.1, §6): instead of
// producing a textual result for the LLM, it appends the described Event to
// the triggering conversation's event queue and returns a success marker.
type EventDispatchTool struct {
	Store *ConversationStore
}

func NewEventDispatchTool(store *ConversationStore) *EventDispatchTool {
	return &EventDispatchTool{Store: store}
}

func (t *EventDispatchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "event_dispatch",
		Description: "Enqueue a named event with a JSON value and optional attachments for this conversation; queued events are delivered to the workflow's entry agents.",
		Schema:      jsonSchema(`"name":{"type":"string"},"value":{"type":"string"},"attachments":{"type":"array"}`, "name"),
	}
}

func (t *EventDispatchTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Name        string       `json:"name"`
		Value       string       `json:"value"`
		Attachments []Attachment `json:"attachments"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "event_dispatch", Cause: err}
	}
	convID, ok := ConversationFromContext(ctx)
	if !ok {
		return "", &ToolExecutionError{Tool: "event_dispatch", Cause: fmt.Errorf("no conversation in context")}
	}
	state, ok := t.Store.Get(convID)
	if !ok {
		return "", &ToolExecutionError{Tool: "event_dispatch", Cause: fmt.Errorf("unknown conversation %q", convID)}
	}
	state.AppendEvent(Event{
		Name:        p.Name,
		Value:       json.RawMessage(mustJSONString(p.Value)),
		Attachments: DedupeAttachments(p.Attachments),
	})
	return "event enqueued", nil
}

// mustJSONString wraps a raw string value as a JSON string literal, unless it
// already looks like valid JSON (object/array/literal), in which case it is
// passed through unchanged.
func mustJSONString(s string) string {
	var probe json.RawMessage
	if json.Unmarshal([]byte(s), &probe) == nil {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}
