package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// SyntaxValidator checks rendered file content for syntax problems. It is an
// external collaborator (§1: "code-syntax validator" is out of scope); when
// nil, fs_patch skips the check.
type SyntaxValidator func(path, content string) (warning string, ok bool)

// FsPatchTool is the fs_patch tool: the Patch Engine (§4.2) wired up as a
// ToolHandler.
type FsPatchTool struct {
	Validator     SyntaxValidator
	StrictMatch   bool // PatchStrictMatch: gate stricter no-match behavior
}

func NewFsPatchTool() *FsPatchTool { return &FsPatchTool{} }

func (t *FsPatchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "fs_patch",
		Description: "Apply one or more SEARCH/REPLACE blocks to a file at an absolute path. " +
			"Each block is delimited by literal markers: <<<<<<< SEARCH, =======, >>>>>>> REPLACE. " +
			"An empty search block appends its replace text to the end of the file.",
		Schema: jsonSchema(`"path":{"type":"string"},"diff":{"type":"string"}`, "path", "diff"),
	}
}

func (t *FsPatchTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path string `json:"path"`
		Diff string `json:"diff"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_patch", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	blocks, err := ParsePatchBlocks(p.Diff)
	if err != nil {
		return "", &ToolExecutionError{Tool: "fs_patch", Cause: err}
	}

	before, result, err := ApplyPatchFile(p.Path, blocks)
	if err != nil {
		return "", err
	}

	var warning string
	var validated bool
	if t.Validator != nil {
		warning, validated = t.Validator(p.Path, result.Content)
	} else {
		validated = true
	}

	diff := LineDiff(before, result.Content)

	var out string
	if !validated && warning != "" {
		out = fmt.Sprintf("<file_content path=%q syntax_checker_warning=%q>%s</file_content>", p.Path, warning, result.Content)
	} else {
		out = fmt.Sprintf("<file_content path=%q>%s</file_content>", p.Path, result.Content)
	}
	if len(result.NoMatch) > 0 {
		out += fmt.Sprintf("\n<patch_no_match blocks=%v/>", result.NoMatch)
		if t.StrictMatch {
			return out, &ToolExecutionError{Tool: "fs_patch", Cause: fmt.Errorf("patch blocks %v did not match (PatchStrictMatch enabled)", result.NoMatch)}
		}
	}
	if diff != "" {
		out += "\n<diff>\n" + diff + "</diff>"
	}
	return out, nil
}
