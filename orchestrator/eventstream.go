package orchestrator

// ChatResponseKind discriminates the streamed payload carried in an
// AgentMessage (§4.7, §6).
type ChatResponseKind string

const (
	RespText         ChatResponseKind = "text"
	RespUsage        ChatResponseKind = "usage"
	RespToolCallStart ChatResponseKind = "tool_call_start"
	RespToolCallEnd   ChatResponseKind = "tool_call_end"
	RespAgentStart    ChatResponseKind = "agent_start"
	RespAgentFinish   ChatResponseKind = "agent_finish"
	RespError         ChatResponseKind = "error"
)

// ChatResponse is one user-visible streamed payload.
type ChatResponse struct {
	Kind ChatResponseKind

	// RespText
	Text       string
	IsComplete bool
	IsMarkdown bool
	IsSummary  bool

	// RespUsage
	PromptTokens     int
	CompletionTokens int
	EstimatedCostUSD float64

	// RespToolCallStart / RespToolCallEnd
	ToolName   string
	ToolResult *ToolResult

	// RespAgentStart / RespAgentFinish
	AgentName string

	// RespError
	Err error
}

// AgentMessage wraps a ChatResponse with the AgentID that produced it, the
// envelope the caller's Event Stream carries (§4.7, §6).
type AgentMessage struct {
	AgentID AgentID
	Payload ChatResponse
}

// EventStream is a bounded multi-producer-single-consumer channel of
// AgentMessage values. The orchestrator and any spawned handover agents are
// independent producer tasks; the caller is the sole consumer (§4.8).
// Back-pressure: producers block on Send when the channel is full.
// Cancellation: Cancel closes the internal done channel, so a blocked Send
// returns false and producers stop at their next Cancelled check.
type EventStream struct {
	ch   chan AgentMessage
	done chan struct{}
}

// NewEventStream creates a stream with the given buffer capacity.
func NewEventStream(capacity int) *EventStream {
	if capacity <= 0 {
		capacity = 64
	}
	return &EventStream{ch: make(chan AgentMessage, capacity), done: make(chan struct{})}
}

// Send delivers msg to the consumer, or returns false if the stream was
// cancelled first.
func (s *EventStream) Send(msg AgentMessage) bool {
	select {
	case s.ch <- msg:
		return true
	case <-s.done:
		return false
	}
}

// C returns the channel consumers range over.
func (s *EventStream) C() <-chan AgentMessage { return s.ch }

// Close signals producers are finished; safe to call once per stream.
func (s *EventStream) Close() { close(s.ch) }

// Cancel cooperatively stops producers: subsequent Send calls return false
// instead of blocking.
func (s *EventStream) Cancel() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Cancelled reports whether Cancel has been called.
func (s *EventStream) Cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
