package orchestrator

import (
	"context"
	"time"

	"github.com/vela-dev/agentcore/pkg/models"
)

// EventSink receives orchestration events. Implementations must be
// non-blocking: an unavailable or slow observer must never affect
// orchestration (spec §4.8's "fire-and-forget" requirement).
type EventSink interface {
	Emit(ctx context.Context, e models.OrchestrationEvent)
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(context.Context, models.OrchestrationEvent) {}

// ChanSink sends events to a buffered channel, dropping on backpressure
// rather than blocking orchestration.
type ChanSink struct {
	ch chan<- models.OrchestrationEvent
}

// NewChanSink wraps a channel as an EventSink. The channel should be
// buffered; this sink never blocks.
func NewChanSink(ch chan<- models.OrchestrationEvent) *ChanSink {
	return &ChanSink{ch: ch}
}

// Emit implements EventSink.
func (s *ChanSink) Emit(ctx context.Context, e models.OrchestrationEvent) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans an event out to several sinks.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink creates a fan-out sink, filtering out nils.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Emit implements EventSink.
func (s *MultiSink) Emit(ctx context.Context, e models.OrchestrationEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink wraps a plain function as an EventSink.
type CallbackSink struct {
	fn func(ctx context.Context, e models.OrchestrationEvent)
}

// NewCallbackSink creates a sink that calls fn for every event.
func NewCallbackSink(fn func(ctx context.Context, e models.OrchestrationEvent)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

// Emit implements EventSink.
func (s *CallbackSink) Emit(ctx context.Context, e models.OrchestrationEvent) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}

// emitter builds and dispatches OrchestrationEvents for one session, each
// observer call wrapped so a panicking or misbehaving sink never reaches the
// caller (events are genuinely fire-and-forget).
type emitter struct {
	sessionID string
	sink      EventSink
}

func newEmitter(sessionID string, sink EventSink) *emitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &emitter{sessionID: sessionID, sink: sink}
}

func (e *emitter) emit(ctx context.Context, kind models.OrchestrationEventKind, payload map[string]any) {
	defer func() { _ = recover() }()
	e.sink.Emit(ctx, models.OrchestrationEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Payload:   payload,
	})
}

func (e *emitter) planningStart(ctx context.Context, prompt string) {
	e.emit(ctx, models.EventPlanningStart, map[string]any{"prompt": prompt})
}

func (e *emitter) planningComplete(ctx context.Context, plan *models.TaskPlan) {
	e.emit(ctx, models.EventPlanningComplete, map[string]any{
		"complexity":     plan.Complexity,
		"taskCount":      len(plan.Tasks),
		"parallelizable": plan.Parallelizable,
	})
}

func (e *emitter) toolExecute(ctx context.Context, task *models.Task) {
	e.emit(ctx, models.EventToolExecute, map[string]any{
		"taskId": task.ID,
		"tool":   task.Tool,
	})
}

func (e *emitter) toolResult(ctx context.Context, task *models.Task) {
	e.emit(ctx, models.EventToolResult, map[string]any{
		"taskId": task.ID,
		"tool":   task.Tool,
		"status": task.Status,
		"error":  task.Error,
	})
}

func (e *emitter) executionComplete(ctx context.Context, result *models.TurnResult) {
	e.emit(ctx, models.EventExecutionComplete, map[string]any{
		"success":   result.Success,
		"toolsUsed": result.ToolsUsed,
	})
}

func (e *emitter) tokenUsage(ctx context.Context, used, total int) {
	e.emit(ctx, models.EventTokenUsage, map[string]any{"used": used, "total": total})
}

func (e *emitter) memoryUpdate(ctx context.Context, kind string) {
	e.emit(ctx, models.EventMemoryUpdate, map[string]any{"kind": kind})
}

func (e *emitter) orchestrationError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	e.emit(ctx, models.EventOrchestrationError, map[string]any{"error": err.Error()})
}

// planexecSink adapts the emitter to planexec.EventSink so the plan
// executor's per-task notifications flow into the same orchestration event
// stream as the turn-level events.
type planexecSink struct{ e *emitter }

func (s planexecSink) ToolExecute(ctx context.Context, _ string, task *models.Task) {
	s.e.toolExecute(ctx, task)
}

func (s planexecSink) ToolResult(ctx context.Context, _ string, task *models.Task) {
	s.e.toolResult(ctx, task)
}
