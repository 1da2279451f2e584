// Package orchestrator implements the orchestrator (C10): the per-turn state
// machine that ties the memory manager, planner, plan executor, approval
// gate, and session manager together (spec §4.8).
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/approvalgate"
	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/internal/memlayers"
	"github.com/vela-dev/agentcore/internal/planexec"
	"github.com/vela-dev/agentcore/internal/planner"
	"github.com/vela-dev/agentcore/internal/store"
	"github.com/vela-dev/agentcore/pkg/models"
)

// DefaultSnapshotInterval is K from §4.8 step 6: take a session snapshot
// every this-many completed turns. No snapshot is taken at shutdown.
const DefaultSnapshotInterval = 3

// Orchestrator drives one turn at a time through
// idle -> planning -> awaiting-approval? -> executing -> finalizing -> idle,
// emitting the §4.8 event vocabulary and delegating to the already-built
// memory, planning, execution, approval, and persistence components.
type Orchestrator struct {
	db       *store.Store
	memory   *memlayers.Manager
	plan     *planner.Planner
	registry *agent.ToolRegistry
	gate     *approvalgate.Gate
	sink     EventSink

	projectID        string
	snapshotInterval int

	mu        sync.Mutex
	state     models.OrchestrationState
	opCounter map[string]int // sessionID -> completed turns since last snapshot
}

// Config bundles the already-built components an Orchestrator wires
// together; every field besides ProjectID is optional (nil-safe), so tests
// can exercise partial wiring.
type Config struct {
	Store            *store.Store
	Memory           *memlayers.Manager
	Planner          *planner.Planner
	Registry         *agent.ToolRegistry
	Gate             *approvalgate.Gate
	Sink             EventSink
	ProjectID        string
	SnapshotInterval int
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Orchestrator{
		db:               cfg.Store,
		memory:           cfg.Memory,
		plan:             cfg.Planner,
		registry:         cfg.Registry,
		gate:             cfg.Gate,
		sink:             cfg.Sink,
		projectID:        cfg.ProjectID,
		snapshotInterval: interval,
		state:            models.StateIdle,
		opCounter:        make(map[string]int),
	}
}

// State returns the orchestrator's current state-machine node. It is shared
// across sessions (one orchestrator process serves one project, per §4.9's
// single advisory lock), so callers driving concurrent sessions should treat
// this as a coarse diagnostic, not a per-session lock.
func (o *Orchestrator) State() models.OrchestrationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s models.OrchestrationState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// HandleTurn runs the full per-turn sequence (spec §4.8 steps 1-7) for one
// user prompt and returns the turn's result.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID string, mode budget.Mode, approvalMode approvalgate.Mode, prompt string) (*models.TurnResult, error) {
	em := newEmitter(sessionID, o.sink)

	// Step 1: receive user prompt (the `prompt` parameter itself).
	o.setState(models.StatePlanning)

	// Step 2: ask the Memory Manager for composed prompt components.
	b := budget.New(mode)
	var composed string
	if o.memory != nil {
		var err error
		composed, err = o.memory.Compose(ctx, prompt, b, memlayers.ComposeOptions{})
		if err != nil {
			return o.fail(ctx, em, fmt.Errorf("orchestrator: compose memory: %w", err))
		}
	} else {
		composed = prompt
	}
	_ = composed // reserved for conversation-task LLM calls; tasks carry their own prompt text

	// Step 3: invoke the Planner with the tool list -> plan.
	em.planningStart(ctx, prompt)
	if o.plan == nil {
		return o.fail(ctx, em, fmt.Errorf("orchestrator: no planner configured"))
	}
	plan, err := o.plan.Plan(ctx, prompt, o.toolDescriptions())
	if err != nil {
		return o.fail(ctx, em, fmt.Errorf("orchestrator: plan: %w", err))
	}

	// Step 4: emit planning-complete with the plan summary.
	em.planningComplete(ctx, plan)
	o.setState(models.StateAwaitingApproval)

	// Step 5: run the executor (which invokes the Approval Gate per task).
	o.setState(models.StateExecuting)
	exec := planexec.New(o.registry, o.gate, o.db, planexec.WithEventSink(planexecSink{em}))
	outcome := exec.Run(ctx, o.projectID, sessionID, approvalMode, plan)

	result := &models.TurnResult{
		Success:   !outcome.Failed,
		ToolsUsed: outcome.ToolsUsed,
		Response:  joinResponses(outcome.Responses),
	}
	if outcome.Failed && outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	em.executionComplete(ctx, result)

	// Step 6: finalize - append to ephemeral memory, snapshot every K turns.
	o.setState(models.StateFinalizing)
	if o.memory != nil && o.memory.Ephemeral != nil && result.Response != "" {
		_ = o.memory.Ephemeral.Update(ctx, memlayers.Event{
			Kind: memlayers.EventNewTurn,
			Turn: &memlayers.Turn{Role: "assistant", Content: result.Response, TokenCount: budget.Count(result.Response)},
		})
		em.memoryUpdate(ctx, "ephemeral-append")
	}
	em.tokenUsage(ctx, b.TotalUsed(), budget.HardTotalCeiling)
	o.maybeSnapshot(ctx, sessionID, mode, em)

	o.setState(models.StateIdle)
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, em *emitter, err error) (*models.TurnResult, error) {
	o.setState(models.StateFailed)
	em.orchestrationError(ctx, err)
	o.setState(models.StateIdle)
	return &models.TurnResult{Success: false, Error: err.Error()}, err
}

func (o *Orchestrator) toolDescriptions() []planner.ToolDescription {
	if o.registry == nil {
		return nil
	}
	tools := o.registry.AsLLMTools()
	out := make([]planner.ToolDescription, 0, len(tools))
	for _, t := range tools {
		out = append(out, planner.ToolDescription{Name: t.Name(), Description: t.Description()})
	}
	return out
}

// maybeSnapshot persists a SessionSnapshot once every snapshotInterval
// completed turns (§4.8 step 6, §3's SessionSnapshot retention model).
func (o *Orchestrator) maybeSnapshot(ctx context.Context, sessionID string, mode budget.Mode, em *emitter) {
	if o.db == nil {
		return
	}
	o.mu.Lock()
	o.opCounter[sessionID]++
	due := o.opCounter[sessionID] >= o.snapshotInterval
	if due {
		o.opCounter[sessionID] = 0
	}
	o.mu.Unlock()
	if !due {
		return
	}

	seq, err := o.db.NextSeq(ctx, sessionID)
	if err != nil {
		em.orchestrationError(ctx, fmt.Errorf("orchestrator: next snapshot seq: %w", err))
		return
	}
	snap := &store.SessionSnapshot{
		SessionID: sessionID,
		Seq:       seq,
		Mode:      string(mode),
	}
	if err := o.db.SaveSnapshot(ctx, snap); err != nil {
		em.orchestrationError(ctx, fmt.Errorf("orchestrator: save snapshot: %w", err))
		return
	}
	em.memoryUpdate(ctx, "snapshot")
}

func joinResponses(rs []string) string {
	switch len(rs) {
	case 0:
		return ""
	case 1:
		return rs[0]
	}
	out := rs[0]
	for _, r := range rs[1:] {
		out += "\n" + r
	}
	return out
}
