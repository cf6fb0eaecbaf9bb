package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type fakeTool struct {
	name        string
	description string
	result      string
	err         error
}

func (f *fakeTool) Definition() ToolDefinition {
	return ToolDefinition{Name: f.name, Description: f.description, Schema: jsonSchema("")}
}

func (f *fakeTool) Call(_ context.Context, _ json.RawMessage) (string, error) {
	return f.result, f.err
}

func TestToolRegistryRegisterAndExecute(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&fakeTool{name: "echo", description: "echoes", result: "hi"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !reg.Has("echo") {
		t.Error("Has(echo) = false, want true after Register")
	}

	res := reg.Execute(context.Background(), ToolCall{ID: "1", Name: "echo"})
	if res.IsError || res.Content != "hi" {
		t.Errorf("Execute() = %+v, want {Content: hi, IsError: false}", res)
	}
}

func TestToolRegistryDuplicateNameIsError(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&fakeTool{name: "echo"}); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(&fakeTool{name: "echo"})
	if err == nil {
		t.Fatal("second Register() with same name = nil error, want ErrDuplicateTool")
	}
}

func TestToolRegistryMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewToolRegistry()
	reg.MustRegister(&fakeTool{name: "echo"})
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustRegister() did not panic on duplicate name")
		}
	}()
	reg.MustRegister(&fakeTool{name: "echo"})
}

func TestToolRegistryDescriptionTooLong(t *testing.T) {
	reg := NewToolRegistry()
	err := reg.Register(&fakeTool{name: "x", description: strings.Repeat("a", maxToolDescriptionLen+1)})
	if err == nil {
		t.Fatal("Register() with oversized description = nil error, want error")
	}
}

func TestToolRegistryExecuteUnknownToolIsRecoverable(t *testing.T) {
	reg := NewToolRegistry()
	res := reg.Execute(context.Background(), ToolCall{ID: "1", Name: "ghost"})
	if !res.IsError {
		t.Error("Execute(unknown tool).IsError = false, want true")
	}
	if res.CallID != "1" {
		t.Errorf("Execute(unknown tool).CallID = %q, want 1", res.CallID)
	}
}

func TestToolRegistryExecuteWrapsHandlerError(t *testing.T) {
	reg := NewToolRegistry()
	reg.MustRegister(&fakeTool{name: "boom", err: &ToolExecutionError{Tool: "boom", Cause: errors.New("boom")}})
	res := reg.Execute(context.Background(), ToolCall{ID: "2", Name: "boom"})
	if !res.IsError {
		t.Error("Execute() with handler error: IsError = false, want true")
	}
}

func TestToolRegistryDefinitionsForPreservesOrderAndSkipsUnknown(t *testing.T) {
	reg := NewToolRegistry()
	reg.MustRegister(&fakeTool{name: "a"})
	reg.MustRegister(&fakeTool{name: "b"})
	reg.MustRegister(&fakeTool{name: "c"})

	defs := reg.DefinitionsFor([]string{"c", "ghost", "a"})
	if len(defs) != 2 || defs[0].Name != "c" || defs[1].Name != "a" {
		t.Errorf("DefinitionsFor() = %+v, want [c, a]", defs)
	}
}
