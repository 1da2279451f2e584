package planexec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/approvalgate"
	"github.com/vela-dev/agentcore/pkg/models"
)

type echoTool struct {
	name    string
	fail    bool
	isError bool
}

func (t *echoTool) Name() string               { return t.name }
func (t *echoTool) Description() string        { return "echoes input" }
func (t *echoTool) Schema() json.RawMessage    { return json.RawMessage(`{"type":"object"}`) }
func (t *echoTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.fail {
		return nil, context.DeadlineExceeded
	}
	if t.isError {
		return &agent.ToolResult{Content: "boom", IsError: true}, nil
	}
	return &agent.ToolResult{Content: "ok:" + string(params)}, nil
}

func newRegistry(tools ...agent.Tool) *agent.ToolRegistry {
	r := agent.NewToolRegistry()
	for _, t := range tools {
		_ = r.Register(t)
	}
	return r
}

func TestRun_SequentialSuccess(t *testing.T) {
	reg := newRegistry(&echoTool{name: "write_file"}, &echoTool{name: "read_file"})
	plan := &models.TaskPlan{
		Tasks: []*models.Task{
			{ID: "t1", Kind: models.TaskKindToolCall, Tool: "write_file", Status: models.TaskStatusPending},
			{ID: "t2", Kind: models.TaskKindToolCall, Tool: "read_file", Dependencies: []string{"t1"}, Status: models.TaskStatusPending},
		},
	}
	plan.RecomputeParallelizable()

	e := New(reg, nil, nil)
	out := e.Run(context.Background(), "proj", "sess", approvalgate.ModeYolo, plan)
	if out.Failed {
		t.Fatalf("expected success, got err=%v", out.Err)
	}
	if plan.Tasks[0].Status != models.TaskStatusCompleted || plan.Tasks[1].Status != models.TaskStatusCompleted {
		t.Fatalf("expected both tasks completed, got %+v", plan.Tasks)
	}
}

func TestRun_DependencyCancelledOnFailure(t *testing.T) {
	reg := newRegistry(&echoTool{name: "flaky", fail: true}, &echoTool{name: "read_file"})
	plan := &models.TaskPlan{
		Tasks: []*models.Task{
			{ID: "t1", Kind: models.TaskKindToolCall, Tool: "flaky", Status: models.TaskStatusPending},
			{ID: "t2", Kind: models.TaskKindToolCall, Tool: "read_file", Dependencies: []string{"t1"}, Status: models.TaskStatusPending},
		},
	}
	plan.RecomputeParallelizable()

	e := New(reg, nil, nil)
	out := e.Run(context.Background(), "proj", "sess", approvalgate.ModeYolo, plan)
	if !out.Failed {
		t.Fatal("expected plan to report failure")
	}
	if plan.Tasks[0].Status != models.TaskStatusFailed {
		t.Fatalf("expected t1 failed, got %s", plan.Tasks[0].Status)
	}
	if plan.Tasks[1].Status != models.TaskStatusCancelled {
		t.Fatalf("expected t2 cancelled because its dependency failed, got %s", plan.Tasks[1].Status)
	}
}

func TestRun_ConversationTaskNeverHitsRegistry(t *testing.T) {
	plan := &models.TaskPlan{
		Tasks: []*models.Task{
			{ID: "t1", Kind: models.TaskKindConversation, Description: "hello", Status: models.TaskStatusPending},
		},
	}
	plan.RecomputeParallelizable()

	e := New(agent.NewToolRegistry(), nil, nil)
	out := e.Run(context.Background(), "proj", "sess", approvalgate.ModeYolo, plan)
	if out.Failed {
		t.Fatalf("conversation task should not fail: %v", out.Err)
	}
	if len(out.Responses) != 1 || out.Responses[0] != "hello" {
		t.Fatalf("expected conversation response echoed, got %+v", out.Responses)
	}
}

func TestRun_HighSensitivityDeniedWithoutPrompter(t *testing.T) {
	reg := newRegistry(&echoTool{name: "shell"})
	plan := &models.TaskPlan{
		Tasks: []*models.Task{
			{ID: "t1", Kind: models.TaskKindToolCall, Tool: "shell", Status: models.TaskStatusPending},
		},
	}
	plan.RecomputeParallelizable()

	gate := approvalgate.NewGate(approvalgate.NewClassifier(nil), nil, nil)
	e := New(reg, gate, nil)
	out := e.Run(context.Background(), "proj", "sess", approvalgate.ModeDefault, plan)
	if !out.Failed {
		t.Fatal("expected shell task to be denied under default mode with no prompter")
	}
	if plan.Tasks[0].Error != "denied" {
		t.Fatalf("expected denied error, got %q", plan.Tasks[0].Error)
	}
}

func TestTimeoutFor(t *testing.T) {
	cases := map[string]struct{}{
		"read_file":  {},
		"write_file": {},
		"shell":      {},
		"websearch":  {},
	}
	for name := range cases {
		if got := timeoutFor(name); got <= 0 {
			t.Errorf("timeoutFor(%q) = %v, want positive", name, got)
		}
	}
	if timeoutFor("request_approval") != 0 {
		t.Error("approval tasks should have no timeout")
	}
}
