package orchestrator

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"

	forge "github.com/asr2003/forge"
)

// ChunkKind discriminates a streamed ProviderChunk (§4.5).
type ChunkKind string

const (
	ChunkTextDelta     ChunkKind = "text_delta"
	ChunkToolCallDelta ChunkKind = "tool_call_delta"
	ChunkToolCallEnd   ChunkKind = "tool_call_end"
	ChunkUsageUpdate   ChunkKind = "usage_update"
	ChunkFinish        ChunkKind = "finish"
)

// ProviderChunk is one element of a Provider Adapter stream.
type ProviderChunk struct {
	Kind ChunkKind

	Text string // ChunkTextDelta

	CallID    string          // ChunkToolCallDelta / ChunkToolCallEnd
	Name      string          // ChunkToolCallDelta (tool name, present on first delta)
	ArgsDelta json.RawMessage // ChunkToolCallDelta (partial/complete JSON arguments)

	PromptTokens     int // ChunkUsageUpdate
	CompletionTokens int // ChunkUsageUpdate

	FinishReason string // ChunkFinish
}

// Model describes a provider-advertised model.
type Model struct {
	ID          string
	Description string
}

// Parameters holds a model's cached configuration (context window, default
// sampling, etc.) — opaque beyond what callers need to display.
type Parameters struct {
	ModelID      string
	ContextWindow int
	Raw          map[string]any
}

// ProviderAdapter exposes a uniform streaming chat interface over an
// underlying forge.Provider, reassembling its synchronous ChatResponse into
// the spec's five chunk kinds, and memoizing per-model Parameters in a
// bounded LRU (§4.5). Grounded on the framework's OpenAI-compatible
// streaming adapter (provider/openaicompat) and retry/rate-limit decorators
// (retry.go, ratelimit.go), which the caller composes underneath via
// forge.WithRetry/forge.WithRateLimit before handing the Provider here.
type ProviderAdapter struct {
	provider forge.Provider
	modelsFn func() []Model

	mu    sync.Mutex
	cache *list.List // of *paramEntry, front = most recently used
	index map[string]*list.Element
	cap   int
}

type paramEntry struct {
	modelID string
	params  Parameters
}

// NewProviderAdapter wraps p. modelsFn supplies the static model catalogue
// (the underlying forge.Provider has no models() operation of its own).
func NewProviderAdapter(p forge.Provider, modelsFn func() []Model) *ProviderAdapter {
	return &ProviderAdapter{
		provider: p,
		modelsFn: modelsFn,
		cache:    list.New(),
		index:    make(map[string]*list.Element),
		cap:      1024,
	}
}

// Models returns the provider's advertised model catalogue.
func (a *ProviderAdapter) Models() []Model {
	if a.modelsFn == nil {
		return nil
	}
	return a.modelsFn()
}

// Parameters returns the memoized Parameters for modelID, computing and
// caching them on first access via a trivial default (the underlying
// forge.Provider interface carries no parameter-introspection operation;
// callers may override via SetParameters for providers that do).
func (a *ProviderAdapter) Parameters(modelID string) Parameters {
	a.mu.Lock()
	defer a.mu.Unlock()
	if el, ok := a.index[modelID]; ok {
		a.cache.MoveToFront(el)
		return el.Value.(*paramEntry).params
	}
	p := Parameters{ModelID: modelID, ContextWindow: 128_000}
	a.put(modelID, p)
	return p
}

// SetParameters overrides the cached Parameters for modelID.
func (a *ProviderAdapter) SetParameters(modelID string, p Parameters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.put(modelID, p)
}

func (a *ProviderAdapter) put(modelID string, p Parameters) {
	if el, ok := a.index[modelID]; ok {
		el.Value.(*paramEntry).params = p
		a.cache.MoveToFront(el)
		return
	}
	el := a.cache.PushFront(&paramEntry{modelID: modelID, params: p})
	a.index[modelID] = el
	if a.cache.Len() > a.cap {
		oldest := a.cache.Back()
		if oldest != nil {
			a.cache.Remove(oldest)
			delete(a.index, oldest.Value.(*paramEntry).modelID)
		}
	}
}

// Chat streams modelID's response to ctxMsgs against the given tool
// definitions, translating the underlying provider's response into
// ProviderChunk values delivered on the returned channel. The channel is
// closed after the terminal ChunkFinish. A hard provider error is delivered
// as a ChunkFinish with FinishReason "error", not as the returned error.
func (a *ProviderAdapter) Chat(ctx context.Context, modelID string, ctxMsgs Context, tools []forge.ToolDefinition) (<-chan ProviderChunk, error) {
	req := forge.ChatRequest{Messages: toChatMessages(ctxMsgs)}

	out := make(chan ProviderChunk, 16)

	go func() {
		defer close(out)
		var resp forge.ChatResponse
		var err error
		if len(tools) > 0 {
			resp, err = a.provider.ChatWithTools(ctx, req, tools)
		} else {
			resp, err = a.provider.Chat(ctx, req)
		}

		if err != nil {
			out <- ProviderChunk{Kind: ChunkFinish, FinishReason: "error"}
			return
		}
		if resp.Content != "" {
			out <- ProviderChunk{Kind: ChunkTextDelta, Text: resp.Content}
		}
		for _, tc := range resp.ToolCalls {
			out <- ProviderChunk{Kind: ChunkToolCallDelta, CallID: tc.ID, Name: tc.Name, ArgsDelta: tc.Args}
			out <- ProviderChunk{Kind: ChunkToolCallEnd, CallID: tc.ID}
		}
		out <- ProviderChunk{Kind: ChunkUsageUpdate, PromptTokens: resp.Usage.InputTokens, CompletionTokens: resp.Usage.OutputTokens}
		out <- ProviderChunk{Kind: ChunkFinish, FinishReason: "stop"}
	}()

	return out, nil
}

// AssembleToolCalls folds a completed stream's ChunkToolCallDelta/End pairs
// into whole ToolCall records, reassembling fragments keyed by CallID — kept
// as a standalone helper so a future provider that truly streams deltas can
// reuse it without changing the Orchestrator's consumption loop (§9:
// "Provider response assembly … Orchestrator sees only whole ToolCall
// records at turn boundaries").
func AssembleToolCalls(chunks []ProviderChunk) []ToolCall {
	order := make([]string, 0, 4)
	byID := make(map[string]*ToolCall)
	for _, c := range chunks {
		if c.Kind != ChunkToolCallDelta {
			continue
		}
		tc, ok := byID[c.CallID]
		if !ok {
			tc = &ToolCall{ID: c.CallID, Name: c.Name}
			byID[c.CallID] = tc
			order = append(order, c.CallID)
		}
		if c.Name != "" {
			tc.Name = c.Name
		}
		tc.Arguments = append(tc.Arguments, c.ArgsDelta...)
	}
	out := make([]ToolCall, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func toChatMessages(ctx Context) []forge.ChatMessage {
	out := make([]forge.ChatMessage, 0, len(ctx))
	for _, m := range ctx {
		switch m.Kind {
		case MessageContent:
			cm := forge.ChatMessage{Role: string(m.Role), Content: m.Text}
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, forge.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments})
			}
			out = append(out, cm)
		case MessageToolResult:
			if m.ToolResult != nil {
				out = append(out, forge.ChatMessage{Role: "tool", Content: m.ToolResult.Content, ToolCallID: m.ToolResult.CallID})
			}
		case MessageImage:
			out = append(out, forge.ChatMessage{
				Role:        "user",
				Attachments: []forge.Attachment{{MimeType: "image/*", Base64: m.ImageURL}},
			})
		}
	}
	return out
}

// toForgeToolDefs converts ToolRegistry-style definitions into the
// forge.Provider wire shape expected by ChatWithTools.
func toForgeToolDefs(defs []ToolDefinition) []forge.ToolDefinition {
	out := make([]forge.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, forge.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Schema})
	}
	return out
}
