package orchestrator

import (
	"context"
	"encoding/json"
)

// ThinkTool lets the agent write a private scratch-pad note. It has no
// side effect; the tool result simply echoes an acknowledgement so the model can continue
// reasoning with the note already in its own context.
type ThinkTool struct{}

func NewThinkTool() *ThinkTool { return &ThinkTool{} }

func (t *ThinkTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "think",
		Description: "Write a private reasoning note. Has no external effect; use it to plan before acting.",
		Schema:      jsonSchema(`"thought":{"type":"string"}`, "thought"),
	}
}

func (t *ThinkTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Thought string `json:"thought"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "think", Cause: err}
	}
	return "noted", nil
}
