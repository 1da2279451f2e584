package models

import "time"

// OrchestrationEventKind enumerates the event vocabulary the orchestrator
// (C10) emits over a turn's lifecycle (spec §4.8, §6). Unlike AgentEventType,
// which describes a single agentic run's internal loop, these events mark
// orchestration-level milestones: planning, gating, execution, and the
// turn's final accounting.
type OrchestrationEventKind string

const (
	EventPlanningStart      OrchestrationEventKind = "planning-start"
	EventPlanningComplete   OrchestrationEventKind = "planning-complete"
	EventToolExecute        OrchestrationEventKind = "tool-execute"
	EventToolResult         OrchestrationEventKind = "tool-result"
	EventExecutionComplete  OrchestrationEventKind = "execution-complete"
	EventTokenUsage         OrchestrationEventKind = "token-usage"
	EventMemoryUpdate       OrchestrationEventKind = "memory-update"
	EventOrchestrationError OrchestrationEventKind = "orchestration-error"
)

// OrchestrationEvent is the wire shape emitted by the orchestrator's event
// stream (spec §6): {kind, timestamp, sessionId, payload}. Transport is
// process-local; an unavailable observer must never fail orchestration, so
// Payload is a plain map rather than a typed union observers must decode to
// acknowledge an event.
type OrchestrationEvent struct {
	Kind      OrchestrationEventKind `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId"`
	Payload   map[string]any         `json:"payload,omitempty"`
}

// OrchestrationState is a node of the orchestrator's per-turn state machine
// (spec §4.8): idle -> planning -> awaiting-approval? -> executing ->
// finalizing -> idle, with cancelled/failed branches reachable from
// planning, executing, or awaiting-approval.
type OrchestrationState string

const (
	StateIdle             OrchestrationState = "idle"
	StatePlanning         OrchestrationState = "planning"
	StateAwaitingApproval OrchestrationState = "awaiting-approval"
	StateExecuting        OrchestrationState = "executing"
	StateFinalizing       OrchestrationState = "finalizing"
	StateCancelled        OrchestrationState = "cancelled"
	StateFailed           OrchestrationState = "failed"
)

// TurnResult is the orchestrator's per-turn return value (spec §4.8 step 7).
type TurnResult struct {
	Success   bool     `json:"success"`
	Response  string   `json:"response,omitempty"`
	ToolsUsed []string `json:"toolsUsed,omitempty"`
	Error     string   `json:"error,omitempty"`
}
