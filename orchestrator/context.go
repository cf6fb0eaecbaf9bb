package orchestrator

import (
	"encoding/xml"
	"strings"
)

// --- Context Store operations (§4.4) ---
// Methods hang off ConversationState and acquire its mutex: all mutations
// within one conversation are totally ordered (§5).

// GetContext returns a snapshot of agent's Context.
func (s *ConversationState) GetContext(agent AgentID) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts[agent].Clone()
}

// SetContext overwrites agent's Context wholesale (used by compaction).
func (s *ConversationState) SetContext(agent AgentID, ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[agent] = ctx
}

// AppendMessages appends msgs to agent's Context. Panics if a ToolResult
// message's CallID does not reference a ToolCall.ID appearing strictly
// earlier in the resulting Context — a programming error in the orchestrator,
// never a user-triggerable state (§3 invariant).
func (s *ConversationState) AppendMessages(agent AgentID, msgs ...ContextMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.contexts[agent]
	seenCalls := make(map[string]bool)
	for _, m := range cur {
		if m.Kind == MessageContent {
			for _, tc := range m.ToolCalls {
				seenCalls[tc.ID] = true
			}
		}
	}
	for _, m := range msgs {
		if m.Kind == MessageToolResult && m.ToolResult != nil {
			if !seenCalls[m.ToolResult.CallID] {
				panic("orchestrator: ToolResult.CallID references no earlier ToolCall in this Context: " + m.ToolResult.CallID)
			}
		}
		if m.Kind == MessageContent {
			for _, tc := range m.ToolCalls {
				seenCalls[tc.ID] = true
			}
		}
		cur = append(cur, m)
	}
	s.contexts[agent] = cur
}

// SetFirstSystemMessage overwrites the existing leading system message, or
// inserts a new one at index 0. Never produces two leading system messages
// (§4.4 invariant).
func (s *ConversationState) SetFirstSystemMessage(agent AgentID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.contexts[agent]
	if len(cur) > 0 && cur[0].Kind == MessageContent && cur[0].Role == RoleSystem {
		cur[0].Text = text
		s.contexts[agent] = cur
		return
	}
	sys := NewSystemMessage(text)
	s.contexts[agent] = append(Context{sys}, cur...)
}

// SetVariable sets a shared workflow variable.
func (s *ConversationState) SetVariable(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = value
}

// GetVariable reads a shared workflow variable.
func (s *ConversationState) GetVariable(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[name]
	return v, ok
}

// Variables returns a shallow copy of all shared variables.
func (s *ConversationState) Variables() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.variables))
	for k, v := range s.variables {
		out[k] = v
	}
	return out
}

// AppendEvent enqueues an Event for later consumption by PopEvent.
func (s *ConversationState) AppendEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// PopEvent dequeues the oldest pending Event, or (Event{}, false) if empty.
func (s *ConversationState) PopEvent() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return Event{}, false
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e, true
}

// IncrementTurn bumps agent's turn counter and returns the new value.
func (s *ConversationState) IncrementTurn(agent AgentID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnCounts[agent]++
	return s.turnCounts[agent]
}

// TurnCount returns agent's current turn counter without incrementing it.
func (s *ConversationState) TurnCount(agent AgentID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCounts[agent]
}

// --- token estimation (§4.4) ---

// canonicalXML renders ctx into the canonical XML text form used as the
// heuristic token-estimation input. This is NOT a wire format; it exists
// solely to give EstimateTokens a stable, order-preserving text to measure.
func canonicalXML(ctx Context) string {
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	type xmsg struct {
		XMLName xml.Name `xml:"message"`
		Role    string   `xml:"role,attr,omitempty"`
		Kind    string   `xml:"kind,attr"`
		Text    string   `xml:",chardata"`
	}
	for _, m := range ctx {
		switch m.Kind {
		case MessageContent:
			enc.Encode(xmsg{Role: string(m.Role), Kind: "content", Text: m.Text})
		case MessageToolResult:
			if m.ToolResult != nil {
				enc.Encode(xmsg{Kind: "tool_result", Text: m.ToolResult.Content})
			}
		case MessageImage:
			enc.Encode(xmsg{Kind: "image", Text: m.ImageURL})
		}
	}
	enc.Flush()
	return b.String()
}

// charsPerToken is the deterministic character-to-token ratio used by the
// heuristic estimator. Documented as non-tokenizer-accurate (§4.4).
const charsPerToken = 4

// EstimateTokens approximates ctx's token count by rendering its canonical
// XML text form and dividing by charsPerToken.
func EstimateTokens(ctx Context) int {
	n := len(canonicalXML(ctx))
	return (n + charsPerToken - 1) / charsPerToken
}
