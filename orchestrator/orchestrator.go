package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	forge "github.com/asr2003/forge"
	"github.com/asr2003/forge/observer"
)

// CostCalculator estimates USD cost from token counts, reusing the
// framework's per-model pricing table directly (§12).
type CostCalculator = observer.CostCalculator

// NewCostCalculator creates a CostCalculator with default pricing, optionally
// merged with overrides.
func NewCostCalculator(overrides map[string]observer.ModelPricing) *CostCalculator {
	return observer.NewCostCalculator(overrides)
}

// DefaultMaxIterations is the per-turn safety bound (§4.7 step 5).
const DefaultMaxIterations = 1024

// DefaultToolTimeout bounds a single tool invocation (§5).
const DefaultToolTimeout = 20 * time.Second

// Summarizer produces a compaction summary for the middle span of an agent's
// assistant history. Grounded on the framework's dedicated-subagent
// compaction idiom (§4.7 step 2, §9 "Compaction … a privileged sub-agent
// call").
type Summarizer func(ctx context.Context, span Context) (string, error)

// SubAgentRunner runs a named agent as a one-shot sub-agent for a Tap/User
// transform, returning its final accumulated text.
type SubAgentRunner func(ctx context.Context, agentID AgentID, seed string) (string, error)

// Orchestrator executes Workflows: for each entry agent, it runs the
// agent-turn loop, dispatches tools in parallel, routes handovers, and emits
// streamed events (§4.7). Grounded on the framework's agentTurn/runLoop
// driver (loop.go) and its parallel-tool-dispatch pattern, generalized from
// a single-agent tool loop into the spec's multi-agent workflow-graph loop
// with handover edges, and its Network/AgentHandle machinery (network.go,
// handle.go) for the wait=false concurrent-handover case.
type Orchestrator struct {
	Store    *ConversationStore
	Tools    *ToolRegistry
	Renderer *Renderer
	Provider *ProviderAdapter
	Tracer   forge.Tracer
	Logger   *slog.Logger

	MaxIterations int
	ToolTimeout   time.Duration

	// Summarize backs the Transform::Assistant compaction step. Required if
	// any agent declares an "assistant" transform.
	Summarize Summarizer
	// RunSubAgent backs Tap/User transforms. Required if any agent declares
	// a "tap" or "user" transform.
	RunSubAgent SubAgentRunner

	// Environment supplies {os, cwd, shell} for SystemContext rendering.
	Environment func() (osName, cwd, shell string)

	// Cost annotates RespUsage events with an estimated USD cost, when set
	// (§12 "Cost/usage accounting"). Grounded on observer/cost.go's
	// per-million-token pricing table; nil disables cost annotation.
	Cost *CostCalculator

	// Guardrail screens the rendered user prompt once per agent turn, before
	// the turn's provider calls, when set. nil disables screening.
	Guardrail *Guardrail
}

func (o *Orchestrator) maxIterations() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return DefaultMaxIterations
}

func (o *Orchestrator) toolTimeout() time.Duration {
	if o.ToolTimeout > 0 {
		return o.ToolTimeout
	}
	return DefaultToolTimeout
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Execute runs conversationID's workflow starting from initialEvent and
// returns the EventStream the caller consumes (§4.7, §6 `chat`).
func (o *Orchestrator) Execute(ctx context.Context, conversationID ConversationID, initialEvent Event) *EventStream {
	stream := NewEventStream(64)
	state, ok := o.Store.Get(conversationID)
	if !ok {
		go func() {
			stream.Send(AgentMessage{Payload: ChatResponse{Kind: RespError, Err: fmt.Errorf("%w: conversation %q", ErrWorkflowUndefined, conversationID)}})
			stream.Close()
		}()
		return stream
	}

	go func() {
		defer stream.Close()
		var wg sync.WaitGroup
		o.runConversation(ctx, state, conversationID, initialEvent, stream, &wg)
		wg.Wait()
	}()
	return stream
}

// runConversation drains a FIFO of pending events (the initiating one, plus
// any enqueued by event_dispatch during agent turns), dispatching each to
// every entry agent in turn (§4.7: "per entry agent, then per handover
// agent").
func (o *Orchestrator) runConversation(ctx context.Context, state *ConversationState, convID ConversationID, initial Event, stream *EventStream, wg *sync.WaitGroup) {
	pending := []Event{initial}
	for len(pending) > 0 {
		ev := pending[0]
		pending = pending[1:]

		for _, agent := range state.Workflow.EntryAgents() {
			if stream.Cancelled() {
				return
			}
			if err := o.runAgentTurn(ctx, state, convID, agent, ev, stream, wg); err != nil {
				stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespError, Err: err}})
			}
		}

		for {
			next, ok := state.PopEvent()
			if !ok {
				break
			}
			pending = append(pending, next)
		}
	}
}

// runAgentTurn executes one full turn-loop for agent, per §4.7 steps 1-6.
func (o *Orchestrator) runAgentTurn(ctx context.Context, state *ConversationState, convID ConversationID, agent Agent, event Event, stream *EventStream, wg *sync.WaitGroup) error {
	stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespAgentStart, AgentName: agent.ID}})
	state.IncrementTurn(agent.ID)

	haltResponse, halted, err := o.prepareTurn(state, agent, event)
	if err != nil {
		return err
	}
	if halted {
		state.AppendMessages(agent.ID, NewAssistantMessage(haltResponse, nil))
		stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespText, Text: haltResponse, IsComplete: true, IsMarkdown: true}})
		stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespAgentFinish, AgentName: agent.ID}})
		return nil
	}
	if err := o.applyTransforms(ctx, state, agent); err != nil {
		return err
	}

	finalText, err := o.runProviderLoop(ctx, state, convID, agent, stream)
	if err != nil {
		return err
	}
	_ = finalText

	stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespAgentFinish, AgentName: agent.ID}})

	return o.routeHandovers(ctx, state, convID, agent, stream, wg)
}

// prepareTurn implements step 1: render the system prompt (first turn only),
// render and append the user prompt, and inline attachments. If a Guardrail
// is configured and flags the rendered prompt, the user message is still
// appended (so the conversation record is complete) but (response, true) is
// returned so the caller skips the provider call entirely.
func (o *Orchestrator) prepareTurn(state *ConversationState, agent Agent, event Event) (string, bool, error) {
	if len(state.GetContext(agent.ID)) == 0 {
		sysCtx := SystemContext{ToolSupported: len(agent.Tools) > 0}
		if o.Environment != nil {
			sysCtx.OS, sysCtx.Cwd, sysCtx.Shell = o.Environment()
		}
		sys, err := o.Renderer.RenderSystem(agent.SystemPromptTemplate, sysCtx)
		if err != nil {
			return "", false, err
		}
		state.SetFirstSystemMessage(agent.ID, sys)
	}

	userText, err := o.Renderer.RenderUser(agent.UserPromptTemplate, EventContext{Event: event, Variables: state.Variables()})
	if err != nil {
		return "", false, err
	}

	var imageMsgs []ContextMessage
	for _, a := range DedupeAttachments(event.Attachments) {
		switch a.Kind {
		case AttachmentText:
			userText += fmt.Sprintf(`<file path=%q>%s</file>`, a.Path, a.Content)
		case AttachmentImage:
			imageMsgs = append(imageMsgs, NewImageMessage(a.Base64))
		}
	}

	msgs := append([]ContextMessage{NewUserMessage(userText)}, imageMsgs...)
	state.AppendMessages(agent.ID, msgs...)

	if o.Guardrail != nil {
		if response, halted := o.Guardrail.Check(userText); halted {
			return response, true, nil
		}
	}
	return "", false, nil
}

// applyTransforms implements step 2, run after the user message has been
// appended (the decided Open Question, SPEC_FULL.md §9.2.3).
func (o *Orchestrator) applyTransforms(ctx context.Context, state *ConversationState, agent Agent) error {
	for _, tr := range agent.Transforms {
		switch tr.Kind {
		case TransformTap:
			if o.RunSubAgent == nil {
				continue
			}
			if _, err := o.RunSubAgent(ctx, tr.Agent, ""); err != nil {
				return err
			}
		case TransformUser:
			if o.RunSubAgent == nil {
				continue
			}
			cur := state.GetContext(agent.ID)
			if len(cur) == 0 {
				continue
			}
			last := cur[len(cur)-1]
			if last.Kind != MessageContent {
				continue
			}
			out, err := o.RunSubAgent(ctx, tr.Agent, last.Text)
			if err != nil {
				return err
			}
			last.Text = out
			cur[len(cur)-1] = last
			state.SetContext(agent.ID, cur)
		case TransformAssistant:
			if err := o.compact(ctx, state, agent, tr); err != nil {
				return err
			}
		}
	}
	return nil
}

// compact summarizes the middle of the assistant history when the estimated
// token count exceeds tr.TokenLimit, replacing the summarized span with a
// single synthetic assistant message tagged IsSummary (§4.7 step 2, §9).
func (o *Orchestrator) compact(ctx context.Context, state *ConversationState, agent Agent, tr Transform) error {
	cur := state.GetContext(agent.ID)
	limit := tr.TokenLimit
	if limit <= 0 || EstimateTokens(cur) <= limit {
		return nil
	}
	if o.Summarize == nil || len(cur) < 4 {
		return nil
	}

	// Keep the leading system message and the most recent message (the
	// user turn just appended) untouched; summarize everything between.
	start := 1
	if start >= len(cur) {
		return nil
	}
	end := len(cur) - 1
	if end <= start {
		return nil
	}
	span := cur[start:end]
	summary, err := o.Summarize(ctx, span)
	if err != nil {
		return err
	}
	summaryMsg := NewAssistantMessage(summary, nil)
	summaryMsg.IsSummary = true

	out := make(Context, 0, len(cur)-len(span)+1)
	out = append(out, cur[:start]...)
	out = append(out, summaryMsg)
	out = append(out, cur[end:]...)
	state.SetContext(agent.ID, out)
	return nil
}

// runProviderLoop implements steps 3-5: call the provider, stream text,
// dispatch tool calls in parallel, reduce the results into Context, and
// repeat until the provider emits no tool calls or MAX_ITERATIONS is hit.
func (o *Orchestrator) runProviderLoop(ctx context.Context, state *ConversationState, convID ConversationID, agent Agent, stream *EventStream) (string, error) {
	toolDefs := toForgeToolDefs(o.Tools.DefinitionsFor(agent.Tools))
	var lastText string

	for iter := 1; ; iter++ {
		if iter > o.maxIterations() {
			return "", fmt.Errorf("%w: agent %q exceeded %d iterations", ErrOrchestratorLoopOverflow, agent.ID, o.maxIterations())
		}

		chunkCh, err := o.Provider.Chat(ctx, agent.Model, state.GetContext(agent.ID), toolDefs)
		if err != nil {
			return "", &ProviderError{Model: agent.Model, Cause: err}
		}

		var text strings.Builder
		var rawChunks []ProviderChunk
		for c := range chunkCh {
			switch c.Kind {
			case ChunkTextDelta:
				text.WriteString(c.Text)
				stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespText, Text: c.Text, IsComplete: false, IsMarkdown: false}})
			case ChunkToolCallDelta, ChunkToolCallEnd:
				rawChunks = append(rawChunks, c)
			case ChunkUsageUpdate:
				usage := ChatResponse{Kind: RespUsage, PromptTokens: c.PromptTokens, CompletionTokens: c.CompletionTokens}
				if o.Cost != nil {
					usage.EstimatedCostUSD = o.Cost.Calculate(agent.Model, c.PromptTokens, c.CompletionTokens)
				}
				stream.Send(AgentMessage{AgentID: agent.ID, Payload: usage})
			case ChunkFinish:
				lastText = text.String()
				stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespText, Text: lastText, IsComplete: true, IsMarkdown: true}})
				if c.FinishReason == "error" {
					return "", &ProviderError{Model: agent.Model, Cause: fmt.Errorf("provider stream error")}
				}
			}
		}

		toolCalls := AssembleToolCalls(rawChunks)
		if len(toolCalls) == 0 {
			return lastText, nil
		}

		results := o.dispatchTools(ctx, convID, agent, toolCalls, stream)

		msgs := make([]ContextMessage, 0, len(results)+1)
		msgs = append(msgs, NewAssistantMessage(lastText, toolCalls))
		for _, r := range results {
			msgs = append(msgs, NewToolResultMessage(r))
		}
		state.AppendMessages(agent.ID, msgs...)
	}
}

// dispatchTools runs every call in parallel, honoring ToolTimeout per call.
// Completion-order ToolCallEnd emission is independent of the caller-ordered
// results slice, matching the spec's split ordering guarantee (§4.7 step 4,
// §5).
func (o *Orchestrator) dispatchTools(ctx context.Context, convID ConversationID, agent Agent, calls []ToolCall, stream *EventStream) []ToolResult {
	results := make([]ToolResult, len(calls))
	toolCtx := withConversation(ctx, convID)

	for _, tc := range calls {
		stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespToolCallStart, ToolName: tc.Name}})
	}

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc ToolCall) {
			defer wg.Done()
			execCtx, cancel := context.WithTimeout(toolCtx, o.toolTimeout())
			defer cancel()
			if tc.Name == "" {
				res := ToolResult{CallID: tc.ID, Content: ErrToolCallMissingName.Error(), IsError: true}
				results[i] = res
				stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespToolCallEnd, ToolResult: &res}})
				return
			}
			res := o.Tools.Execute(execCtx, tc)
			results[i] = res
			stream.Send(AgentMessage{AgentID: agent.ID, Payload: ChatResponse{Kind: RespToolCallEnd, ToolResult: &res}})
		}(i, tc)
	}
	wg.Wait()
	return results
}

// routeHandovers implements step 6: each downstream agent either runs
// synchronously before this function returns (wait=true) or is spawned
// concurrently, tracked by wg so Execute's caller sees the stream close only
// once every spawned handover has finished.
func (o *Orchestrator) routeHandovers(ctx context.Context, state *ConversationState, convID ConversationID, agent Agent, stream *EventStream, wg *sync.WaitGroup) error {
	for _, h := range agent.Handovers {
		target, ok := state.Workflow.ByID(h.Agent)
		if !ok {
			return fmt.Errorf("%w: %q", ErrAgentUndefined, h.Agent)
		}
		handoverEvent := Event{Name: "handover/" + agent.ID}

		if h.Wait {
			if err := o.runAgentTurn(ctx, state, convID, target, handoverEvent, stream, wg); err != nil {
				return err
			}
			continue
		}

		wg.Add(1)
		go func(target Agent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					stream.Send(AgentMessage{AgentID: target.ID, Payload: ChatResponse{Kind: RespError, Err: fmt.Errorf("panic in handover agent %q: %v", target.ID, r)}})
				}
			}()
			if err := o.runAgentTurn(ctx, state, convID, target, handoverEvent, stream, wg); err != nil {
				stream.Send(AgentMessage{AgentID: target.ID, Payload: ChatResponse{Kind: RespError, Err: err}})
			}
		}(target)
	}
	return nil
}
