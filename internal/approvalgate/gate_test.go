package approvalgate

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/vela-dev/agentcore/internal/store"
	"github.com/vela-dev/agentcore/pkg/models"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type scriptedPrompter struct{ choice InteractionChoice }

func (p scriptedPrompter) Prompt(ctx context.Context, req PromptRequest) (InteractionChoice, error) {
	return p.choice, nil
}

func TestGate_DefaultModeAllowsLowDeniesHighWithoutPrompter(t *testing.T) {
	s := newTestStore(t)
	g := NewGate(NewClassifier(nil), nil, s)

	decision, err := g.Check(context.Background(), "sess-1", ModeDefault, models.ToolCall{ID: "1", Name: "read"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision != DecisionAllow {
		t.Fatalf("expected low-sensitivity read to auto-allow in default mode, got %s", decision)
	}

	decision, err = g.Check(context.Background(), "sess-1", ModeDefault, models.ToolCall{ID: "2", Name: "exec", Input: json.RawMessage(`{"command":"ls"}`)})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision != DecisionDeny {
		t.Fatalf("expected high-sensitivity exec without a prompter to deny in default mode, got %s", decision)
	}
}

func TestGate_YoloAllowsEverything(t *testing.T) {
	s := newTestStore(t)
	g := NewGate(NewClassifier(nil), nil, s)

	decision, err := g.Check(context.Background(), "sess-2", ModeYolo, models.ToolCall{ID: "1", Name: "exec", Input: json.RawMessage(`{"command":"rm -rf /tmp/x"}`)})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision != DecisionAllow {
		t.Fatalf("expected yolo mode to allow everything, got %s", decision)
	}
}

func TestGate_ApproveRememberSkipsFuturePrompts(t *testing.T) {
	s := newTestStore(t)
	g := NewGate(NewClassifier(nil), scriptedPrompter{choice: ChoiceApproveRemember}, s)

	call := models.ToolCall{ID: "1", Name: "exec", Input: json.RawMessage(`{"command":"ls"}`)}
	first, err := g.Check(context.Background(), "sess-3", ModeDefault, call)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if first != DecisionAllow {
		t.Fatalf("expected approve-remember to allow, got %s", first)
	}

	deny := NewGate(NewClassifier(nil), scriptedPrompter{choice: ChoiceDenyOnce}, s)
	deny.remembered = g.remembered // share the remembered cache to simulate same gate instance
	second, err := deny.Check(context.Background(), "sess-3", ModeDefault, call)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if second != DecisionAllow {
		t.Fatalf("expected remembered approval to bypass the prompter on second call, got %s", second)
	}
}

func TestGate_ForgetSessionClearsRememberedDecisions(t *testing.T) {
	s := newTestStore(t)
	g := NewGate(NewClassifier(nil), scriptedPrompter{choice: ChoiceApproveRemember}, s)
	call := models.ToolCall{ID: "1", Name: "exec", Input: json.RawMessage(`{"command":"ls"}`)}

	if _, err := g.Check(context.Background(), "sess-4", ModeDefault, call); err != nil {
		t.Fatalf("Check: %v", err)
	}
	g.ForgetSession("sess-4")

	denyGate := NewGate(NewClassifier(nil), scriptedPrompter{choice: ChoiceDenyOnce}, s)
	denyGate.remembered = g.remembered
	decision, err := denyGate.Check(context.Background(), "sess-4", ModeDefault, call)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision != DecisionDeny {
		t.Fatalf("expected forgotten session to re-prompt and deny, got %s", decision)
	}
}

func TestCheckPath_RejectsTraversalAndSecrets(t *testing.T) {
	cases := []string{"../etc/passwd", "~/.bashrc", "/etc/shadow", "config/.env", "secrets/api_key.txt"}
	for _, p := range cases {
		if err := CheckPath(p); err == nil {
			t.Fatalf("expected CheckPath to reject %q", p)
		}
	}
	if err := CheckPath("src/main.go"); err != nil {
		t.Fatalf("expected CheckPath to accept a normal path, got %v", err)
	}
}
