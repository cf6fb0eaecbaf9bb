package orchestrator

import (
	"errors"
	"testing"
)

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &ProviderError{Model: "gpt-5", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(ProviderError, cause) = false, want true")
	}
	if got := err.Error(); got == "" {
		t.Error("ProviderError.Error() = empty string")
	}
}

func TestToolExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	err := &ToolExecutionError{Tool: "fs_read", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(ToolExecutionError, cause) = false, want true")
	}
}

func TestIOErrorUnwrap(t *testing.T) {
	err := &IOError{Op: "read", Path: "/tmp/x", Cause: ErrFileNotFound}
	if !errors.Is(err, ErrFileNotFound) {
		t.Error("errors.Is(IOError, ErrFileNotFound) = false, want true")
	}
}

func TestErrorTaxonomySentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrToolCallMissingName, ErrToolCallArgument, ErrToolCallParse,
		ErrAgentUndefined, ErrWorkflowUndefined, ErrUndefinedVariable,
		ErrTemplateRender, ErrCancelled, ErrOrchestratorLoopOverflow,
		ErrDuplicateTool, ErrInvalidPath, ErrFileNotFound, ErrPathNotAbsolute,
	}
	seen := make(map[string]bool, len(sentinels))
	for _, s := range sentinels {
		if seen[s.Error()] {
			t.Errorf("duplicate sentinel error message: %q", s.Error())
		}
		seen[s.Error()] = true
	}
}
