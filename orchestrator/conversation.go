package orchestrator

import (
	"context"
	"sync"
)

// ConversationState is the full in-memory state of one live conversation:
// the immutable workflow snapshot, a Context per agent, shared variables, a
// pending event queue, and per-agent turn counters (§3).
type ConversationState struct {
	mu sync.Mutex

	Workflow     Workflow
	contexts     map[AgentID]Context
	variables    map[string]any
	events       []Event
	turnCounts   map[AgentID]uint32
}

func newConversationState(wf Workflow) *ConversationState {
	vars := make(map[string]any, len(wf.Variables))
	for k, v := range wf.Variables {
		vars[k] = v
	}
	return &ConversationState{
		Workflow:   wf,
		contexts:   make(map[AgentID]Context),
		variables:  vars,
		turnCounts: make(map[AgentID]uint32),
	}
}

// ConversationStore is an in-memory map of ConversationID -> ConversationState,
// guarded by a reader-writer lock (§4.6). All mutations within one
// conversation are serialized by that conversation's own mutex; different
// conversations do not contend beyond the map lookup.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[ConversationID]*ConversationState
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{conversations: make(map[ConversationID]*ConversationState)}
}

// Create allocates a new conversation bound to wf, returning its fresh id.
func (s *ConversationStore) Create(wf Workflow) ConversationID {
	id := NewConversationID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = newConversationState(wf)
	return id
}

// Upsert inserts or replaces the state for id.
func (s *ConversationStore) Upsert(id ConversationID, wf Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = newConversationState(wf)
}

// Get returns the conversation state for id, or (nil, false).
func (s *ConversationStore) Get(id ConversationID) (*ConversationState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.conversations[id]
	return st, ok
}

// Delete removes a conversation (used by the external "/new" command).
func (s *ConversationStore) Delete(id ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// --- context plumbing for event_dispatch ---

type conversationCtxKey struct{}

// withConversation attaches id to ctx so tool handlers (notably
// event_dispatch) can resolve which conversation's event queue to append to,
// without threading an explicit parameter through the Tool interface.
func withConversation(ctx context.Context, id ConversationID) context.Context {
	return context.WithValue(ctx, conversationCtxKey{}, id)
}

// ConversationFromContext extracts the ConversationID set by the orchestrator
// for the current tool dispatch, if any.
func ConversationFromContext(ctx context.Context) (ConversationID, bool) {
	id, ok := ctx.Value(conversationCtxKey{}).(ConversationID)
	return id, ok
}
