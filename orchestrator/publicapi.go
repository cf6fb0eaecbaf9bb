package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// App is the public surface consumed by an external CLI/UI (§6). It wires a
// ConversationStore, ToolRegistry, and Orchestrator together, adapted from
// the framework's cmd/oasis/main.go functional-options construction.
type App struct {
	Store        *ConversationStore
	Tools        *ToolRegistry
	Orchestrator *Orchestrator
	BasePath     string
	ProviderKey  string
	ProviderURL  string
	LargeModelID string
	SmallModelID string
}

// ChatRequest is the input to chat() (§6).
type ChatRequest struct {
	Content        string
	ConversationID ConversationID
	Files          []string
}

// File describes a suggestion entry; Path is absolute (§6 `suggestions()`).
type File struct {
	Path  string
	IsDir bool
}

// Conversation is a read-only snapshot of a ConversationState, safe to hand
// to callers outside the Conversation Store's lock (§6 `conversation()`).
type Conversation struct {
	ID        ConversationID
	Workflow  Workflow
	Contexts  map[AgentID]Context
	Variables map[string]any
}

// Environment describes the process's ambient configuration (§6
// `environment()`).
type Environment struct {
	OS           string
	Cwd          string
	Home         string
	Shell        string
	BasePath     string
	ProviderKey  string
	ProviderURL  string
	LargeModelID string
	SmallModelID string
}

// CompactResult reports the effect of compact_conversation (§6).
type CompactResult struct {
	TokensBefore    int
	TokensAfter     int
	MessagesBefore  int
	MessagesAfter   int
}

// Suggestions lists files under the current working directory, for
// "@path" attachment completion in an external UI. The filesystem walker
// itself is an out-of-scope external collaborator (§1); this is the minimal
// in-scope listing the public API promises.
func (a *App) Suggestions() ([]File, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(cwd)
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(entries))
	for _, e := range entries {
		out = append(out, File{Path: filepath.Join(cwd, e.Name()), IsDir: e.IsDir()})
	}
	return out, nil
}

// ToolDefs returns every registered tool's definition (§6 `tools()`).
func (a *App) ToolDefs() []ToolDefinition {
	return a.Tools.Definitions()
}

// Models returns the provider's advertised model catalogue (§6 `models()`).
func (a *App) Models() []Model {
	return a.Orchestrator.Provider.Models()
}

// InitConversation creates a new conversation bound to wf and returns its id
// (§6 `init_conversation`).
func (a *App) InitConversation(wf Workflow) (ConversationID, error) {
	if err := wf.Validate(a.Tools); err != nil {
		return "", err
	}
	return a.Store.Create(wf), nil
}

// Conversation returns a snapshot of id, or (Conversation{}, false) if not
// found (§6 `conversation()`).
func (a *App) Conversation(id ConversationID) (Conversation, bool) {
	st, ok := a.Store.Get(id)
	if !ok {
		return Conversation{}, false
	}
	snap := Conversation{ID: id, Workflow: st.Workflow, Contexts: make(map[AgentID]Context), Variables: st.Variables()}
	for _, agent := range st.Workflow.Agents {
		snap.Contexts[agent.ID] = st.GetContext(agent.ID)
	}
	return snap, true
}

// UpsertConversation replaces (or inserts) the stored state for c.ID,
// restoring its Contexts and Variables (§6 `upsert_conversation`).
func (a *App) UpsertConversation(c Conversation) {
	a.Store.Upsert(c.ID, c.Workflow)
	st, _ := a.Store.Get(c.ID)
	for agent, ctx := range c.Contexts {
		st.SetContext(agent, ctx)
	}
	for k, v := range c.Variables {
		st.SetVariable(k, v)
	}
}

// CompactConversation forces a one-shot compaction of every agent's Context
// in id using the orchestrator's Summarizer, reporting size before/after
// (§6 `compact_conversation`).
func (a *App) CompactConversation(ctx context.Context, id ConversationID) (CompactResult, error) {
	st, ok := a.Store.Get(id)
	if !ok {
		return CompactResult{}, fmt.Errorf("%w: conversation %q", ErrWorkflowUndefined, id)
	}
	var result CompactResult
	for _, agent := range st.Workflow.Agents {
		cur := st.GetContext(agent.ID)
		result.TokensBefore += EstimateTokens(cur)
		result.MessagesBefore += len(cur)
		if err := a.Orchestrator.compact(ctx, st, agent, Transform{Kind: TransformAssistant, TokenLimit: 1}); err != nil {
			return CompactResult{}, err
		}
		after := st.GetContext(agent.ID)
		result.TokensAfter += EstimateTokens(after)
		result.MessagesAfter += len(after)
	}
	return result, nil
}

// Chat drives the full public chat() operation (§6): resolves or creates the
// conversation, determines whether this is the first message
// (user_task_init) or a follow-up (user_task_update), and executes the
// orchestrator, returning its EventStream.
func (a *App) Chat(req ChatRequest, wf Workflow, mode string) (ConversationID, *EventStream) {
	id := req.ConversationID
	_, existed := a.Store.Get(id)
	eventName := EventUpdate(mode)
	if !existed {
		id = a.Store.Create(wf)
		eventName = EventInit(mode)
	}

	var atts []Attachment
	for _, path := range req.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		atts = append(atts, Attachment{Kind: AttachmentText, Path: path, Content: string(data)})
	}

	// Event.Value is typed json.RawMessage to carry arbitrary structured
	// payloads for tool-dispatched events; a plain chat message is just its
	// UTF-8 text, not a JSON-encoded string, so user prompt templates can
	// render {{.Event.Value}} directly without unquoting.
	event := Event{Name: eventName, Value: json.RawMessage(req.Content), Attachments: atts}
	stream := a.Orchestrator.Execute(context.Background(), id, event)
	return id, stream
}

// EnvironmentInfo reports the process's ambient configuration (§6
// `environment()`).
func (a *App) EnvironmentInfo() Environment {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	shell := os.Getenv("SHELL")
	if runtime.GOOS == "windows" {
		shell = os.Getenv("COMSPEC")
	}
	return Environment{
		OS:           runtime.GOOS,
		Cwd:          cwd,
		Home:         home,
		Shell:        shell,
		BasePath:     a.BasePath,
		ProviderKey:  a.ProviderKey,
		ProviderURL:  a.ProviderURL,
		LargeModelID: a.LargeModelID,
		SmallModelID: a.SmallModelID,
	}
}
