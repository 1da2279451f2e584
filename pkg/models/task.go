package models

import "time"

// TaskKind identifies what a Task asks the orchestrator to do.
type TaskKind string

const (
	// TaskKindConversation is answered directly with an assistant message;
	// it never reaches the tool registry.
	TaskKindConversation TaskKind = "conversation"

	// TaskKindToolCall invokes exactly one registered tool.
	TaskKindToolCall TaskKind = "tool-call"

	// TaskKindMultiStep groups several related tool invocations that the
	// planner chose not to split into separate dependent tasks.
	TaskKindMultiStep TaskKind = "multi-step"
)

// TaskStatus is the lifecycle state of a single Task within a TaskPlan.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a single planned unit of work produced by the planner and driven
// to completion by the executor.
type Task struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Kind         TaskKind       `json:"kind"`
	Tool         string         `json:"tool,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       TaskStatus     `json:"status"`
	RetryCount   int            `json:"retryCount"`
	Timeout      time.Duration  `json:"timeout"`

	// Result and Error are populated by the executor as the task runs.
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PlanComplexity is the planner's heuristic classification of a prompt.
type PlanComplexity string

const (
	ComplexitySimple   PlanComplexity = "simple"
	ComplexityModerate PlanComplexity = "moderate"
	ComplexityComplex  PlanComplexity = "complex"
)

// TaskPlan is the planner's output: an ordered set of tasks plus the
// metadata the orchestrator and executor need to drive them.
type TaskPlan struct {
	OriginalPrompt string         `json:"originalPrompt"`
	Complexity     PlanComplexity `json:"complexity"`
	Parallelizable bool           `json:"parallelizable"`
	Tasks          []*Task        `json:"tasks"`
}

// MaxPlanTasks is the planner's per-plan task budget (spec §4.5): additional
// operations beyond this are merged into existing tasks or deferred.
const MaxPlanTasks = 8

// TaskByID returns the task with the given id, or nil if absent.
func (p *TaskPlan) TaskByID(id string) *Task {
	if p == nil {
		return nil
	}
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// RecomputeParallelizable sets Parallelizable to true iff no task declares
// any dependency.
func (p *TaskPlan) RecomputeParallelizable() {
	if p == nil {
		return
	}
	for _, t := range p.Tasks {
		if len(t.Dependencies) > 0 {
			p.Parallelizable = false
			return
		}
	}
	p.Parallelizable = true
}
