package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	forge "github.com/asr2003/forge"
)

// ScheduledAction is a durable tool_schedule record: fire Event Name/Value
// against ConversationID/AgentID at or after NextRun, then either disable
// (one-shot) or recompute NextRun (recurring), per the Schedule string
// grammar implemented by forge.ComputeNextRun (§12 "Scheduled actions").
type ScheduledAction struct {
	ID             string
	ConversationID ConversationID
	Agent          AgentID
	Description    string
	Schedule       string
	EventName      string
	EventValue     json.RawMessage
	NextRun        int64
	Enabled        bool
}

// ScheduleStore is the minimal persistence surface the Scheduler needs.
// Separated from DumpStore because scheduled actions are mutated on every
// tick while dumps are append-only; a real deployment may back both with the
// same *sql.DB, but the orchestrator does not require that.
type ScheduleStore interface {
	Create(ctx context.Context, a ScheduledAction) error
	Due(ctx context.Context, now int64) ([]ScheduledAction, error)
	Advance(ctx context.Context, id string, nextRun int64, enabled bool) error
}

// memScheduleStore is an in-memory ScheduleStore, the default when no
// durable store is configured — adequate for a single-process deployment,
// matching the framework's own in-memory stubs used outside its SQLite
// backend.
type memScheduleStore struct {
	mu      sync.Mutex
	actions map[string]ScheduledAction
}

// NewMemScheduleStore creates an empty in-memory ScheduleStore.
func NewMemScheduleStore() ScheduleStore {
	return &memScheduleStore{actions: make(map[string]ScheduledAction)}
}

func (m *memScheduleStore) Create(_ context.Context, a ScheduledAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = a
	return nil
}

func (m *memScheduleStore) Due(_ context.Context, now int64) ([]ScheduledAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScheduledAction
	for _, a := range m.actions {
		if a.Enabled && a.NextRun <= now {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memScheduleStore) Advance(_ context.Context, id string, nextRun int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return fmt.Errorf("orchestrator: unknown scheduled action %q", id)
	}
	a.NextRun = nextRun
	a.Enabled = enabled
	m.actions[id] = a
	return nil
}

// Scheduler polls a ScheduleStore every minute for due actions and enqueues
// their Event onto the owning conversation, to be picked up by
// runConversation's pending-event loop on its next pass. Grounded on
// scheduler.go's ticker-driven run/checkAndRun loop, generalized from
// "execute tool calls and message a frontend owner" to "enqueue an Event for
// the orchestrator to route," since the orchestrator (not a chat frontend)
// owns delivery here.
type Scheduler struct {
	Store    ScheduleStore
	Conv     *ConversationStore
	TZOffset int
	Logger   *slog.Logger

	Interval time.Duration // defaults to 60s
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return 60 * time.Second
}

// Run blocks, polling until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger().Info("orchestrator: scheduler started")
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger().Info("orchestrator: scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := forge.NowUnix()
	due, err := s.Store.Due(ctx, now)
	if err != nil {
		s.logger().Error("orchestrator: scheduler store error", "error", err)
		return
	}
	for _, a := range due {
		s.fire(ctx, a, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, a ScheduledAction, now int64) {
	state, ok := s.Conv.Get(a.ConversationID)
	if !ok {
		s.logger().Warn("orchestrator: scheduled action references missing conversation", "conversation", a.ConversationID)
		return
	}
	state.AppendEvent(Event{Name: a.EventName, Value: a.EventValue})

	if isOneShot(a.Schedule) {
		_ = s.Store.Advance(ctx, a.ID, a.NextRun, false)
		return
	}
	next, ok := forge.ComputeNextRun(a.Schedule, now, s.TZOffset)
	if !ok {
		next = now + 86400
	}
	_ = s.Store.Advance(ctx, a.ID, next, true)
}

func isOneShot(schedule string) bool {
	return len(schedule) >= 5 && schedule[len(schedule)-4:] == "once"
}

// scheduleArgs is the tool_schedule tool's JSON input shape.
type scheduleArgs struct {
	Description string          `json:"description"`
	Schedule    string          `json:"schedule"`
	EventName   string          `json:"event_name"`
	EventValue  json.RawMessage `json:"event_value"`
}

// ScheduleTool exposes tool_schedule: a running agent registers a future
// Event against its own conversation (§12).
type ScheduleTool struct {
	Store    ScheduleStore
	TZOffset int
}

func (t *ScheduleTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "tool_schedule",
		Description: "Schedule a future event on this conversation. schedule is \"HH:MM daily\", \"HH:MM once\", \"HH:MM weekly(monday)\", \"HH:MM monthly(15)\", or \"HH:MM custom(mon,wed,fri)\", in the user's local time.",
		Schema: jsonSchema(`"description":{"type":"string"},"schedule":{"type":"string"},"event_name":{"type":"string"},"event_value":{}`,
			"description", "schedule", "event_name"),
	}
}

func (t *ScheduleTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	var args scheduleArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolCallArgument, err)
	}
	convID, ok := ConversationFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("orchestrator: tool_schedule called outside a conversation")
	}
	now := forge.NowUnix()
	nextRun, ok := forge.ComputeNextRun(args.Schedule, now, t.TZOffset)
	if !ok {
		return "", fmt.Errorf("orchestrator: invalid schedule %q", args.Schedule)
	}
	action := ScheduledAction{
		ID:             forge.NewID(),
		ConversationID: convID,
		Description:    args.Description,
		Schedule:       args.Schedule,
		EventName:      args.EventName,
		EventValue:     args.EventValue,
		NextRun:        nextRun,
		Enabled:        true,
	}
	if err := t.Store.Create(ctx, action); err != nil {
		return "", err
	}
	return fmt.Sprintf("scheduled %q for %s", args.Description, forge.FormatLocalTime(nextRun, t.TZOffset)), nil
}
