package orchestrator

import (
	"context"
	"errors"

	forge "github.com/asr2003/forge"
)

// Guardrail screens a rendered user prompt before it reaches the provider,
// wrapping the framework's InjectionGuard/ContentGuard PreLLM checks
// (guardrail.go) unmodified. Adapted here from "middleware around a
// ChatRequest bound for a single-agent loop" to "a pre-flight check the
// orchestrator runs once per agent turn, short-circuiting the turn with a
// canned response instead of calling the provider" (§4.7 step 1).
type Guardrail struct {
	injection *forge.InjectionGuard
	content   *forge.ContentGuard
}

// NewGuardrail builds a Guardrail from the given options. Pass nil for
// either guard to skip that check.
func NewGuardrail(injection *forge.InjectionGuard, content *forge.ContentGuard) *Guardrail {
	return &Guardrail{injection: injection, content: content}
}

// Check screens text, returning (response, true) if a guard halted the turn
// — the caller should surface response as the agent's final text instead of
// calling the provider.
func (g *Guardrail) Check(text string) (string, bool) {
	req := &forge.ChatRequest{Messages: []forge.ChatMessage{{Role: "user", Content: text}}}

	if g.injection != nil {
		if err := g.injection.PreLLM(context.Background(), req); err != nil {
			return haltResponse(err), true
		}
	}
	if g.content != nil {
		if err := g.content.PreLLM(context.Background(), req); err != nil {
			return haltResponse(err), true
		}
	}
	return "", false
}

func haltResponse(err error) string {
	var halt *forge.ErrHalt
	if errors.As(err, &halt) {
		return halt.Response
	}
	return err.Error()
}
