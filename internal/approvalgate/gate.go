// Package approvalgate implements the approval gate: classifying tool calls
// by sensitivity, deciding whether a session mode allows them automatically
// or must prompt the user, and recording every decision to the durable audit
// trail.
package approvalgate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vela-dev/agentcore/internal/store"
	"github.com/vela-dev/agentcore/pkg/models"
)

// Sensitivity classifies how risky a tool call is.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Mode is the session's approval posture, distinct from the token budget's
// output-verbosity Mode.
type Mode string

const (
	// ModeDefault prompts for anything above low sensitivity.
	ModeDefault Mode = "default"
	// ModeAutoEdit allows low and medium sensitivity calls without prompting
	// (medium includes the edit tool and the network tools) and prompts for
	// high sensitivity ones such as shell commands, write and apply_patch.
	ModeAutoEdit Mode = "auto-edit"
	// ModeYolo allows everything without prompting.
	ModeYolo Mode = "yolo"
)

// gateTable is the authoritative mode x sensitivity -> allow/prompt table.
var gateTable = map[Mode]map[Sensitivity]bool{
	ModeDefault: {
		SensitivityLow:    true,
		SensitivityMedium: false,
		SensitivityHigh:   false,
	},
	ModeAutoEdit: {
		SensitivityLow:    true,
		SensitivityMedium: true,
		SensitivityHigh:   false,
	},
	ModeYolo: {
		SensitivityLow:    true,
		SensitivityMedium: true,
		SensitivityHigh:   true,
	},
}

// allowsAutomatically reports whether mode permits sensitivity without a prompt.
func allowsAutomatically(mode Mode, sensitivity Sensitivity) bool {
	row, ok := gateTable[mode]
	if !ok {
		row = gateTable[ModeDefault]
	}
	return row[sensitivity]
}

// Decision is the outcome of a gate check.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask"
)

// InteractionChoice is what the user chose when prompted. Prompts never
// time out; the caller blocks until one of these is returned.
type InteractionChoice string

const (
	ChoiceApproveOnce     InteractionChoice = "approve_once"
	ChoiceApproveRemember InteractionChoice = "approve_remember"
	ChoiceDenyOnce        InteractionChoice = "deny_once"
	ChoiceDenyRemember    InteractionChoice = "deny_remember"
)

// Prompter asks the user to decide on a tool call and blocks until answered.
// Implementations must not apply their own timeout: approval prompts are
// specified to wait indefinitely for a human decision.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (InteractionChoice, error)
}

// PromptRequest describes a tool call awaiting a human decision.
type PromptRequest struct {
	SessionID   string
	ToolName    string
	Input       string
	Sensitivity Sensitivity
}

// Gate composes classification, the mode table, a per-session remembered-
// decision cache, and the durable audit trail.
type Gate struct {
	classifier *Classifier
	prompter   Prompter
	store      *store.Store

	mu         sync.Mutex
	remembered map[string]map[string]Decision // sessionID -> toolName -> remembered decision
}

// NewGate creates an approval gate. prompter may be nil if the session never
// needs to prompt (e.g. yolo-only automation); a nil prompter in ModeDefault
// or ModeAutoEdit denies anything that would otherwise need a prompt.
func NewGate(classifier *Classifier, prompter Prompter, s *store.Store) *Gate {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Gate{
		classifier: classifier,
		prompter:   prompter,
		store:      s,
		remembered: make(map[string]map[string]Decision),
	}
}

// Check runs the full gate algorithm for a single tool call: classify,
// consult the mode table, consult any remembered session decision, prompt if
// still undecided, then persist the outcome to the audit trail.
func (g *Gate) Check(ctx context.Context, sessionID string, mode Mode, call models.ToolCall) (Decision, error) {
	sensitivity := g.classifier.Classify(call.Name, call.Input)

	if remembered, ok := g.rememberedDecision(sessionID, call.Name); ok {
		g.record(ctx, sessionID, call, sensitivity, remembered, "user")
		return remembered, nil
	}

	if allowsAutomatically(mode, sensitivity) {
		g.record(ctx, sessionID, call, sensitivity, DecisionAllow, "mode")
		return DecisionAllow, nil
	}

	if g.prompter == nil {
		g.record(ctx, sessionID, call, sensitivity, DecisionDeny, "no-prompter")
		return DecisionDeny, nil
	}

	choice, err := g.prompter.Prompt(ctx, PromptRequest{
		SessionID:   sessionID,
		ToolName:    call.Name,
		Input:       string(call.Input),
		Sensitivity: sensitivity,
	})
	if err != nil {
		return DecisionDeny, fmt.Errorf("approvalgate: prompt: %w", err)
	}

	var decision Decision
	switch choice {
	case ChoiceApproveOnce, ChoiceApproveRemember:
		decision = DecisionAllow
	case ChoiceDenyOnce, ChoiceDenyRemember:
		decision = DecisionDeny
	default:
		decision = DecisionDeny
	}

	if choice == ChoiceApproveRemember || choice == ChoiceDenyRemember {
		g.remember(sessionID, call.Name, decision)
	}

	g.record(ctx, sessionID, call, sensitivity, decision, "user")
	return decision, nil
}

func (g *Gate) rememberedDecision(sessionID, toolName string) (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	perTool, ok := g.remembered[sessionID]
	if !ok {
		return "", false
	}
	d, ok := perTool[toolName]
	return d, ok
}

func (g *Gate) remember(sessionID, toolName string, decision Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.remembered[sessionID] == nil {
		g.remembered[sessionID] = make(map[string]Decision)
	}
	g.remembered[sessionID][toolName] = decision
}

// ForgetSession drops all remembered decisions for a session, called at
// session end so remembered approvals never leak across sessions.
func (g *Gate) ForgetSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.remembered, sessionID)
}

func (g *Gate) record(ctx context.Context, sessionID string, call models.ToolCall, sensitivity Sensitivity, decision Decision, decidedBy string) {
	if g.store == nil {
		return
	}
	now := time.Now()
	rec := &store.ApprovalRequestRecord{
		SessionID:   sessionID,
		Tool:        call.Name,
		Sensitivity: string(sensitivity),
		Decision:    string(decision),
		DecidedBy:   decidedBy,
		RequestedAt: now,
		DecidedAt:   &now,
	}
	_ = g.store.RecordApprovalDecision(ctx, rec)
}

// strip is a small helper shared by classifier pattern matching.
func strip(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
