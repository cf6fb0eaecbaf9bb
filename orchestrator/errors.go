package orchestrator

import "errors"

// Error taxonomy (§7). Recoverable kinds are surfaced as a ToolResult with
// IsError=true so the LLM can react; fatal kinds terminate the agent-turn and
// emit an error frame on the caller's Event Stream, leaving the Context
// inspectable.

var (
	// ErrToolCallMissingName marks model output that requested a tool call
	// with no name. Recoverable.
	ErrToolCallMissingName = errors.New("orchestrator: tool call missing name")
	// ErrToolCallArgument marks a tool call whose arguments failed schema
	// validation. Recoverable.
	ErrToolCallArgument = errors.New("orchestrator: tool call argument error")
	// ErrToolCallParse marks malformed JSON in a streamed tool call. Recoverable.
	ErrToolCallParse = errors.New("orchestrator: tool call parse error")

	// ErrAgentUndefined marks a workflow referencing an agent id that does
	// not resolve. Fatal to the turn.
	ErrAgentUndefined = errors.New("orchestrator: agent undefined")
	// ErrWorkflowUndefined marks a workflow with no entry agent, or a
	// reference to a conversation whose workflow snapshot is missing. Fatal.
	ErrWorkflowUndefined = errors.New("orchestrator: workflow undefined")
	// ErrUndefinedVariable marks a template or event referencing an unknown
	// workflow variable. Fatal to the turn.
	ErrUndefinedVariable = errors.New("orchestrator: undefined variable")

	// ErrTemplateRender marks a strict-mode template render failure (missing
	// variable reference). Fatal to the turn.
	ErrTemplateRender = errors.New("orchestrator: template render error")

	// ErrCancelled marks cooperative cancellation via context or the
	// conversation-scoped cancel token. Propagates without retry.
	ErrCancelled = errors.New("orchestrator: cancelled")

	// ErrOrchestratorLoopOverflow marks a turn that exceeded MAX_ITERATIONS.
	// Fatal.
	ErrOrchestratorLoopOverflow = errors.New("orchestrator: loop overflow")

	// ErrDuplicateTool marks duplicate tool registration, a startup error
	// per the decided Open Question (SPEC_FULL.md §9.2).
	ErrDuplicateTool = errors.New("orchestrator: duplicate tool registration")

	// ErrInvalidPath marks a path-bearing tool call with a non-absolute path.
	ErrInvalidPath = errors.New("orchestrator: path must be absolute")

	// ErrFileNotFound marks a patch or fs_read target that does not exist.
	ErrFileNotFound = errors.New("orchestrator: file not found")
	// ErrPathNotAbsolute is the Patch Engine's specific InvalidPath variant.
	ErrPathNotAbsolute = errors.New("orchestrator: path not absolute")
)

// ProviderError wraps a transport/provider failure. Retried per a bounded
// policy (see Provider Adapter); fatal once attempts are exhausted.
type ProviderError struct {
	Model string
	Cause error
}

func (e *ProviderError) Error() string {
	return "orchestrator: provider(" + e.Model + "): " + e.Cause.Error()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ToolExecutionError wraps a tool's internal failure cause before it is
// folded into a ToolResult{IsError: true}; the loop continues.
type ToolExecutionError struct {
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return "orchestrator: tool " + e.Tool + ": " + e.Cause.Error()
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// IOError wraps a filesystem failure raised by a path-bearing tool.
type IOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return "orchestrator: io " + e.Op + " " + e.Path + ": " + e.Cause.Error()
}

func (e *IOError) Unwrap() error { return e.Cause }
