package orchestrator

import (
	"context"
	"testing"
)

func TestConversationStoreCreateReturnsUsableID(t *testing.T) {
	store := NewConversationStore()
	id := store.Create(Workflow{Model: "gpt-5"})
	if id == "" {
		t.Fatal("Create() returned empty id")
	}
	state, ok := store.Get(id)
	if !ok {
		t.Fatal("Get() after Create() = false, want true")
	}
	if state.Workflow.Model != "gpt-5" {
		t.Errorf("state.Workflow.Model = %q, want gpt-5", state.Workflow.Model)
	}
}

func TestConversationStoreGetUnknownID(t *testing.T) {
	store := NewConversationStore()
	_, ok := store.Get(ConversationID("ghost"))
	if ok {
		t.Error("Get(unknown) = true, want false")
	}
}

func TestConversationStoreUpsertReplacesState(t *testing.T) {
	store := NewConversationStore()
	id := store.Create(Workflow{Model: "old-model"})
	store.Upsert(id, Workflow{Model: "new-model"})

	state, ok := store.Get(id)
	if !ok {
		t.Fatal("Get() after Upsert() = false")
	}
	if state.Workflow.Model != "new-model" {
		t.Errorf("state.Workflow.Model = %q, want new-model", state.Workflow.Model)
	}
}

func TestConversationStoreDeleteRemovesConversation(t *testing.T) {
	store := NewConversationStore()
	id := store.Create(Workflow{})
	store.Delete(id)
	if _, ok := store.Get(id); ok {
		t.Error("Get() after Delete() = true, want false")
	}
}

func TestWithConversationRoundTrip(t *testing.T) {
	id := ConversationID("abc123")
	ctx := withConversation(context.Background(), id)
	got, ok := ConversationFromContext(ctx)
	if !ok {
		t.Fatal("ConversationFromContext() = false, want true")
	}
	if got != id {
		t.Errorf("ConversationFromContext() = %q, want %q", got, id)
	}
}

func TestConversationFromContextMissing(t *testing.T) {
	_, ok := ConversationFromContext(context.Background())
	if ok {
		t.Error("ConversationFromContext(bare context) = true, want false")
	}
}
