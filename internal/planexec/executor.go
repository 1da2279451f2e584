// Package planexec implements the plan executor (C8): driving a
// planner-produced TaskPlan to completion per spec §4.6. Unlike
// agent.Executor (a generic parallel tool-call dispatcher with a single flat
// timeout), this executor understands task dependencies, per-operation
// timeout classes, the approval gate, and append-only execution logging.
package planexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/approvalgate"
	"github.com/vela-dev/agentcore/internal/store"
	"github.com/vela-dev/agentcore/pkg/models"
)

// timeoutFor classifies a tool name into the §4.6 per-operation timeout
// table. Tools are matched by name/keyword since the registry doesn't carry
// an explicit operation-class tag.
func timeoutFor(toolName string) time.Duration {
	name := strings.ToLower(strings.TrimSpace(toolName))
	switch {
	case name == "":
		return defaultTaskTimeout
	case contains(name, "read"):
		return fileReadTimeout
	case contains(name, "write") || contains(name, "edit") || contains(name, "apply_patch"):
		return fileWriteTimeout
	case contains(name, "shell") || contains(name, "exec") || contains(name, "bash") || contains(name, "command"):
		return shellTimeout
	case contains(name, "websearch") || contains(name, "web_search") || contains(name, "webfetch") || contains(name, "web_fetch") || contains(name, "search"):
		return webSearchTimeout
	case contains(name, "large_file") || contains(name, "bulk"):
		return largeFileTimeout
	case contains(name, "recover") || contains(name, "restore"):
		return systemRecoveryTimeout
	case contains(name, "approval") || contains(name, "approve"):
		return 0 // no timeout: user approval waits indefinitely
	default:
		return defaultTaskTimeout
	}
}

func contains(haystack, needle string) bool { return strings.Contains(haystack, needle) }

const (
	fileReadTimeout       = 5 * time.Second
	fileWriteTimeout      = 10 * time.Second
	shellTimeout          = 30 * time.Second
	webSearchTimeout      = 15 * time.Second
	largeFileTimeout      = 120 * time.Second
	systemRecoveryTimeout = 60 * time.Second
	defaultTaskTimeout    = 30 * time.Second

	maxAttempts  = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second
)

// FailurePolicy controls what happens to the rest of the plan when a task
// fails.
type FailurePolicy string

const (
	// StopOnFailure halts remaining pending tasks once one fails.
	StopOnFailure FailurePolicy = "stop-on-failure"
	// ContinueOnFailure cancels only the tasks depending on the failure.
	ContinueOnFailure FailurePolicy = "continue-on-failure"
)

// EventSink receives tool-execute/tool-result notifications as the executor
// runs. Implementations must not block; a nil sink is valid (events are
// simply dropped).
type EventSink interface {
	ToolExecute(ctx context.Context, sessionID string, task *models.Task)
	ToolResult(ctx context.Context, sessionID string, task *models.Task)
}

// Executor drives a TaskPlan's tasks to completion, honoring dependencies,
// per-operation timeouts, and the approval gate before every tool call.
type Executor struct {
	registry *agent.ToolRegistry
	gate     *approvalgate.Gate
	logStore *store.Store
	sink     EventSink
	policy   FailurePolicy
}

// Option configures an Executor.
type Option func(*Executor)

// WithFailurePolicy overrides the default stop-on-failure plan policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithEventSink attaches an event sink for tool-execute/tool-result events.
func WithEventSink(sink EventSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// New creates a plan executor. logStore may be nil in tests that don't care
// about the execution-log audit trail.
func New(registry *agent.ToolRegistry, gate *approvalgate.Gate, logStore *store.Store, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		gate:     gate,
		logStore: logStore,
		policy:   StopOnFailure,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the terminal result of running a plan.
type Outcome struct {
	ToolsUsed []string
	Responses []string // conversation-task text, in task order
	Failed    bool
	Err       error
}

// Run drives every task in plan to completion (or cancellation), per the
// §4.6 pseudocode: wait for dependencies, gate tool calls, retry with
// backoff, and stop or continue per the configured failure policy.
func (e *Executor) Run(ctx context.Context, projectID, sessionID string, mode approvalgate.Mode, plan *models.TaskPlan) *Outcome {
	out := &Outcome{}
	if plan == nil || len(plan.Tasks) == 0 {
		return out
	}

	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	var mu sync.Mutex
	done := make(map[string]bool)

	runTask := func(task *models.Task) {
		mu.Lock()
		depsOK := true
		for _, depID := range task.Dependencies {
			dep := plan.TaskByID(depID)
			if dep == nil {
				continue
			}
			if dep.Status == models.TaskStatusFailed || dep.Status == models.TaskStatusCancelled {
				depsOK = false
			}
		}
		mu.Unlock()

		if !depsOK {
			task.Status = models.TaskStatusCancelled
			task.Error = "dependency failed"
			mu.Lock()
			done[task.ID] = true
			mu.Unlock()
			return
		}

		task.Status = models.TaskStatusRunning

		if task.Kind == models.TaskKindConversation {
			task.Status = models.TaskStatusCompleted
			task.Result = task.Description
			mu.Lock()
			out.Responses = append(out.Responses, task.Result)
			done[task.ID] = true
			mu.Unlock()
			return
		}

		e.runToolTask(runCtx, projectID, sessionID, mode, task)

		mu.Lock()
		done[task.ID] = true
		if task.Tool != "" {
			out.ToolsUsed = append(out.ToolsUsed, task.Tool)
		}
		if task.Status == models.TaskStatusCompleted && task.Result != "" {
			out.Responses = append(out.Responses, task.Result)
		}
		failed := task.Status == models.TaskStatusFailed
		mu.Unlock()

		if failed && e.policy == StopOnFailure {
			cancelAll()
		}
	}

	if plan.Parallelizable {
		var wg sync.WaitGroup
		for _, task := range plan.Tasks {
			wg.Add(1)
			go func(t *models.Task) {
				defer wg.Done()
				runTask(t)
			}(task)
		}
		wg.Wait()
	} else {
		for _, task := range plan.Tasks {
			select {
			case <-runCtx.Done():
				task.Status = models.TaskStatusCancelled
				task.Error = "plan cancelled"
				continue
			default:
			}
			runTask(task)
		}
	}

	for _, task := range plan.Tasks {
		if task.Status == models.TaskStatusFailed {
			out.Failed = true
			if out.Err == nil {
				out.Err = fmt.Errorf("task %s failed: %s", task.ID, task.Error)
			}
		}
	}
	return out
}

// runToolTask executes a single tool-backed task: gate, retry, log.
func (e *Executor) runToolTask(ctx context.Context, projectID, sessionID string, mode approvalgate.Mode, task *models.Task) {
	argsJSON, err := json.Marshal(task.Arguments)
	if err != nil {
		task.Status = models.TaskStatusFailed
		task.Error = fmt.Sprintf("invalid arguments: %v", err)
		return
	}
	call := models.ToolCall{ID: task.ID, Name: task.Tool, Input: argsJSON}

	if e.sink != nil {
		e.sink.ToolExecute(ctx, sessionID, task)
	}

	if e.gate != nil {
		decision, err := e.gate.Check(ctx, sessionID, mode, call)
		if err != nil {
			task.Status = models.TaskStatusFailed
			task.Error = fmt.Sprintf("approval gate: %v", err)
			e.logTask(ctx, projectID, sessionID, task, 0, err)
			return
		}
		if decision == approvalgate.DecisionDeny {
			task.Status = models.TaskStatusFailed
			task.Error = "denied"
			e.logTask(ctx, projectID, sessionID, task, 0, fmt.Errorf("denied"))
			if e.sink != nil {
				e.sink.ToolResult(ctx, sessionID, task)
			}
			return
		}
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = timeoutFor(task.Tool)
	}

	var lastErr error
	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		task.RetryCount = attempt - 1
		result, execErr := e.executeOnce(ctx, call, timeout)
		if execErr == nil {
			task.Status = models.TaskStatusCompleted
			task.Result = result.Content
			e.logTask(ctx, projectID, sessionID, task, time.Since(start), nil)
			if e.sink != nil {
				e.sink.ToolResult(ctx, sessionID, task)
			}
			return
		}

		lastErr = execErr
		if !agent.IsToolRetryable(execErr) || attempt == maxAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}

		backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
	}

	task.Status = models.TaskStatusFailed
	task.Error = lastErr.Error()
	e.logTask(ctx, projectID, sessionID, task, time.Since(start), lastErr)
	if e.sink != nil {
		e.sink.ToolResult(ctx, sessionID, task)
	}
}

func (e *Executor) executeOnce(ctx context.Context, call models.ToolCall, timeout time.Duration) (*agent.ToolResult, error) {
	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := e.registry.Execute(execCtx, call.Name, call.Input)
	if err != nil {
		return nil, agent.NewToolError(call.Name, err)
	}
	if result.IsError {
		return nil, agent.NewToolError(call.Name, fmt.Errorf("%s", result.Content))
	}
	return result, nil
}

func (e *Executor) logTask(ctx context.Context, projectID, sessionID string, task *models.Task, dur time.Duration, execErr error) {
	if e.logStore == nil {
		return
	}
	entry := &store.ExecutionLogEntry{
		ProjectID:  projectID,
		SessionID:  sessionID,
		Tool:       task.Tool,
		Input:      mustJSON(task.Arguments),
		DurationMS: dur.Milliseconds(),
		Success:    execErr == nil,
	}
	if execErr != nil {
		msg := execErr.Error()
		entry.ErrorMessage = &msg
	} else {
		out := task.Result
		entry.Output = &out
	}
	_ = e.logStore.AppendExecutionLog(ctx, entry)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
