package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkflowFileRoundTrip(t *testing.T) {
	wf := Workflow{
		Model:     "gpt-5",
		Variables: map[string]any{"project": "demo"},
		Agents: []Agent{
			{
				ID:                   "coder",
				Model:                "gpt-5",
				Description:          "writes code",
				SystemPromptTemplate: "You are on {{.OS}}.",
				UserPromptTemplate:   "{{.Event.Name}}",
				Tools:                []string{"fs_read", "fs_patch"},
				Transforms:           []Transform{{Kind: TransformAssistant, Agent: "summarizer", TokenLimit: 4000}},
				Handovers:            []Handover{{Agent: "reviewer", Wait: true}},
				Entry:                true,
			},
			{ID: "reviewer", Model: "gpt-5", Ephemeral: true},
		},
	}

	path := filepath.Join(t.TempDir(), "workflow.toml")
	if err := WriteWorkflow(path, wf); err != nil {
		t.Fatalf("WriteWorkflow() error = %v", err)
	}

	got, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("LoadWorkflow() error = %v", err)
	}

	if got.Model != wf.Model {
		t.Errorf("Model = %q, want %q", got.Model, wf.Model)
	}
	if len(got.Agents) != 2 {
		t.Fatalf("Agents = %d, want 2", len(got.Agents))
	}
	coder, ok := got.ByID("coder")
	if !ok {
		t.Fatal("ByID(coder) = false after round-trip")
	}
	if coder.SystemPromptTemplate != wf.Agents[0].SystemPromptTemplate {
		t.Errorf("SystemPromptTemplate = %q, want %q", coder.SystemPromptTemplate, wf.Agents[0].SystemPromptTemplate)
	}
	if len(coder.Handovers) != 1 || coder.Handovers[0].Agent != "reviewer" || !coder.Handovers[0].Wait {
		t.Errorf("Handovers = %+v, want [{reviewer true}]", coder.Handovers)
	}
	if len(coder.Transforms) != 1 || coder.Transforms[0].TokenLimit != 4000 {
		t.Errorf("Transforms = %+v, want TokenLimit 4000", coder.Transforms)
	}
	if !coder.Entry {
		t.Error("coder.Entry = false, want true")
	}

	reviewer, ok := got.ByID("reviewer")
	if !ok {
		t.Fatal("ByID(reviewer) = false")
	}
	if !reviewer.Ephemeral {
		t.Error("reviewer.Ephemeral = false, want true")
	}
}

func TestLoadWorkflowMissingFile(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join(t.TempDir(), "ghost.toml"))
	if err == nil {
		t.Fatal("LoadWorkflow(missing file) = nil error, want error")
	}
}

func TestLoadWorkflowInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("this is not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadWorkflow(path)
	if err == nil {
		t.Fatal("LoadWorkflow(invalid toml) = nil error, want error")
	}
}
