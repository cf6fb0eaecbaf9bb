// Package orchestrator drives a configured Workflow of agents against an LLM
// provider and a catalogue of tools, managing per-agent conversation context,
// parallel tool dispatch, agent-to-agent handovers, and streamed output.
package orchestrator

import (
	"encoding/json"
	"fmt"

	forge "github.com/asr2003/forge"
)

// AgentID names an Agent within a Workflow.
type AgentID = string

// ConversationID is an opaque, time-sortable identifier, unique per
// conversation. Only total order by creation is guaranteed.
type ConversationID = string

// NewConversationID mints a fresh ConversationID.
func NewConversationID() ConversationID {
	return forge.NewID()
}

// Transform is a pre-flight mutation applied to an agent's Context before the
// provider is called. Exactly one of the Kind-specific fields is meaningful.
type Transform struct {
	// Kind is one of "tap", "user", "assistant".
	Kind string `toml:"kind" json:"kind"`
	// Agent names the sub-agent invoked to perform the transform (tap/user).
	// It is not read for "assistant" transforms: compaction calls
	// Orchestrator.Summarize and does not run a sub-agent.
	Agent AgentID `toml:"agent" json:"agent"`
	// TokenLimit is the compaction trigger threshold for an "assistant"
	// transform; ignored for other kinds.
	TokenLimit int `toml:"token_limit" json:"token_limit"`
}

const (
	TransformTap       = "tap"
	TransformUser      = "user"
	TransformAssistant = "assistant"
)

// Handover is a directed edge from one Agent to another.
type Handover struct {
	Agent AgentID `toml:"agent" json:"agent"`
	Wait  bool    `toml:"wait" json:"wait"`
}

// Agent is a named behavior: a model binding, prompt templates, a tool
// allow-list, pre-flight transforms, and handover edges to downstream agents.
type Agent struct {
	ID                   AgentID     `toml:"id" json:"id"`
	Model                string      `toml:"model" json:"model"`
	Description          string      `toml:"description" json:"description"`
	SystemPromptTemplate string      `toml:"system_prompt" json:"system_prompt"`
	UserPromptTemplate   string      `toml:"user_prompt" json:"user_prompt"`
	Tools                []string    `toml:"tools" json:"tools"`
	Transforms           []Transform `toml:"transforms" json:"transforms"`
	Handovers            []Handover  `toml:"handovers" json:"handovers"`
	Ephemeral            bool        `toml:"ephemeral" json:"ephemeral"`
	Entry                bool        `toml:"entry" json:"entry"`
}

// Workflow is the declarative, user-authored, immutable-after-load graph of
// Agents plus shared variables and a default model binding.
type Workflow struct {
	Model     string           `toml:"model" json:"model"`
	Variables map[string]any   `toml:"variables" json:"variables"`
	Agents    []Agent          `toml:"agents" json:"agents"`
}

// ByID returns the Agent with the given id, or false if none exists.
func (w *Workflow) ByID(id AgentID) (Agent, bool) {
	for _, a := range w.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// EntryAgents returns every Agent with Entry=true, in definition order.
func (w *Workflow) EntryAgents() []Agent {
	var out []Agent
	for _, a := range w.Agents {
		if a.Entry {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks the structural invariants required by §3 of the spec: every
// tool an agent lists resolves in reg, and every handover target resolves to
// another agent in the same workflow.
func (w *Workflow) Validate(reg *ToolRegistry) error {
	ids := make(map[AgentID]bool, len(w.Agents))
	for _, a := range w.Agents {
		if ids[a.ID] {
			return fmt.Errorf("orchestrator: duplicate agent id %q", a.ID)
		}
		ids[a.ID] = true
	}
	hasEntry := false
	for _, a := range w.Agents {
		if a.Entry {
			hasEntry = true
		}
		for _, t := range a.Tools {
			if reg != nil && !reg.Has(t) {
				return fmt.Errorf("%w: agent %q references tool %q", ErrAgentUndefined, a.ID, t)
			}
		}
		for _, h := range a.Handovers {
			if !ids[h.Agent] {
				return fmt.Errorf("%w: agent %q handover references unknown agent %q", ErrAgentUndefined, a.ID, h.Agent)
			}
		}
	}
	if !hasEntry {
		return fmt.Errorf("%w: workflow has no entry agent", ErrWorkflowUndefined)
	}
	return nil
}

// Role identifies the speaker of a Content ContextMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a single LLM-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers a ToolCall. CallID must match a ToolCall.ID appearing
// strictly earlier in the same Context.
type ToolResult struct {
	Name    string `json:"name"`
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// ContextMessageKind discriminates the ContextMessage union.
type ContextMessageKind string

const (
	MessageContent    ContextMessageKind = "content"
	MessageToolResult ContextMessageKind = "tool_result"
	MessageImage      ContextMessageKind = "image"
)

// ContextMessage is one entry in an agent's Context: a Content message
// (system/user/assistant text, optionally with requested tool calls), a
// ToolResult, or an Image reference. Exactly the fields relevant to Kind are
// populated; the rest are zero.
type ContextMessage struct {
	Kind ContextMessageKind `json:"kind"`

	// Content fields.
	Role      Role       `json:"role,omitempty"`
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	IsSummary bool       `json:"is_summary,omitempty"`

	// ToolResult field.
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Image field.
	ImageURL string `json:"image_url,omitempty"`
}

func NewSystemMessage(text string) ContextMessage {
	return ContextMessage{Kind: MessageContent, Role: RoleSystem, Text: text}
}

func NewUserMessage(text string) ContextMessage {
	return ContextMessage{Kind: MessageContent, Role: RoleUser, Text: text}
}

func NewAssistantMessage(text string, calls []ToolCall) ContextMessage {
	return ContextMessage{Kind: MessageContent, Role: RoleAssistant, Text: text, ToolCalls: calls}
}

func NewToolResultMessage(r ToolResult) ContextMessage {
	return ContextMessage{Kind: MessageToolResult, ToolResult: &r}
}

func NewImageMessage(url string) ContextMessage {
	return ContextMessage{Kind: MessageImage, ImageURL: url}
}

// Context is the ordered message log a single agent sees when calling the
// provider. Invariant: at most one leading system message; every ToolResult
// references a ToolCall.ID that appears earlier in the Context (enforced by
// ConversationState.AppendMessages, see context.go).
type Context []ContextMessage

// Clone returns a deep-enough copy for safe handoff to a reader outside the
// Conversation Store's lock.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	copy(out, c)
	return out
}

// AttachmentKind discriminates the Attachment union.
type AttachmentKind string

const (
	AttachmentText  AttachmentKind = "text"
	AttachmentImage AttachmentKind = "image"
)

// Attachment is a file referenced by the user: inlined as text, or passed to
// the provider as an image. Set semantics: duplicates by Path collapse.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	Path     string         `json:"path"`
	Content  string         `json:"content,omitempty"`  // AttachmentText
	Base64   string         `json:"base64,omitempty"`   // AttachmentImage
	MimeType string         `json:"mime_type,omitempty"`
}

// DedupeAttachments collapses duplicate attachments by Path, keeping the
// first occurrence — the set semantics required by §3.
func DedupeAttachments(atts []Attachment) []Attachment {
	seen := make(map[string]bool, len(atts))
	out := make([]Attachment, 0, len(atts))
	for _, a := range atts {
		if seen[a.Path] {
			continue
		}
		seen[a.Path] = true
		out = append(out, a)
	}
	return out
}

// Event is an external or tool-emitted stimulus. Every event is delivered to
// every entry agent of the workflow; its Name is not matched against agents.
// Two names are distinguished by convention: "<mode>/user_task_init"
// (first user message in a conversation) and "<mode>/user_task_update"
// (subsequent messages); all others are user-defined and drive event_dispatch.
type Event struct {
	Name        string       `json:"name"`
	Value       json.RawMessage `json:"value"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// EventInit returns the well-known "init" event name for mode.
func EventInit(mode string) string { return mode + "/user_task_init" }

// EventUpdate returns the well-known "update" event name for mode.
func EventUpdate(mode string) string { return mode + "/user_task_update" }

// PatchBlock is one search/replace unit parsed from an fs_patch diff body.
type PatchBlock struct {
	Search  string
	Replace string
}
