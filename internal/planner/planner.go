// Package planner implements the planner (C7): turning a user prompt into a
// TaskPlan, per spec §4.5. A cheap heuristic classifies prompt complexity;
// anything beyond a bare conversational ask goes to the LLM under a
// JSON-constrained system prompt, with a repair pass and a rule-based
// fallback decomposition when the model's output can't be parsed.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/pkg/models"
)

// sequenceMarkers signal a multi-step prompt when present between clauses.
var sequenceMarkers = []string{"then", "after that", "after", "next", "finally", "once done", "and then"}

// toolVerbs hint that a prompt wants the agent to act rather than merely
// converse.
var toolVerbs = []string{
	"create", "write", "edit", "modify", "delete", "remove", "run", "execute",
	"search", "find", "look up", "fetch", "download", "install", "build",
	"test", "compile", "deploy", "commit", "push", "read", "open", "list",
	"rename", "move", "copy",
}

// backReferences mark a task as depending on the immediately preceding one.
var backReferences = []string{"it", "that", "the file", "this", "those", "the result", "the output"}

var wordSplitRe = regexp.MustCompile(`\s+`)

// Planner turns a prompt into a TaskPlan, invoking the LLM for anything past
// the simplest conversational case.
type Planner struct {
	llm   agent.LLMProvider
	model string
}

// New creates a Planner bound to an LLM provider. model may be empty to use
// the provider's default.
func New(llm agent.LLMProvider, model string) *Planner {
	return &Planner{llm: llm, model: model}
}

// ToolDescription is the minimal shape the planner needs from the tool
// registry: enough to tell the LLM what's available without importing the
// full agent.Tool interface (whose Schema() the planner doesn't need).
type ToolDescription struct {
	Name        string
	Description string
}

// Plan builds a TaskPlan for prompt, given the tools currently registered.
func (p *Planner) Plan(ctx context.Context, prompt string, tools []ToolDescription) (*models.TaskPlan, error) {
	prompt = strings.TrimSpace(prompt)
	complexity := classify(prompt)

	if complexity == models.ComplexitySimple && !hasToolVerb(prompt) {
		return singleConversationPlan(prompt), nil
	}

	plan, err := p.planWithLLM(ctx, prompt, complexity, tools)
	if err != nil || plan == nil {
		plan = ruleBasedPlan(prompt, complexity, tools)
	}

	finalize(plan)
	return plan, nil
}

// classify applies the §4.5 complexity heuristic: word count, sequence
// markers, and tool-indicator verbs.
func classify(prompt string) models.PlanComplexity {
	words := wordSplitRe.Split(strings.TrimSpace(prompt), -1)
	wordCount := len(words)
	if prompt == "" {
		wordCount = 0
	}

	hasSequence := containsAny(prompt, sequenceMarkers)
	hasVerb := hasToolVerb(prompt)

	switch {
	case hasSequence && hasVerb:
		return models.ComplexityComplex
	case wordCount > 40:
		return models.ComplexityComplex
	case hasVerb || wordCount > 12:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

func hasToolVerb(prompt string) bool {
	return containsAny(prompt, toolVerbs)
}

func containsAny(prompt string, needles []string) bool {
	lower := strings.ToLower(prompt)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func singleConversationPlan(prompt string) *models.TaskPlan {
	return &models.TaskPlan{
		OriginalPrompt: prompt,
		Complexity:     models.ComplexitySimple,
		Parallelizable: true,
		Tasks: []*models.Task{
			{
				ID:          "t1",
				Description: prompt,
				Kind:        models.TaskKindConversation,
				Status:      models.TaskStatusPending,
			},
		},
	}
}

// llmPlanResponse mirrors the two schemas the JSON-constrained prompt may
// return (spec §4.5 step 3).
type llmPlanResponse struct {
	Type     string `json:"type"`
	Response string `json:"response,omitempty"`
	Tasks    []struct {
		Description string         `json:"description"`
		Type        string         `json:"type"`
		Tools       []string       `json:"tools"`
		Action      string         `json:"action"`
		Filename    string         `json:"filename,omitempty"`
		Content     string         `json:"content,omitempty"`
		Arguments   map[string]any `json:"arguments,omitempty"`
	} `json:"tasks,omitempty"`
}

// planWithLLM issues the JSON-constrained completion request. The planner's
// own request always budgets at the deep mode's output cap regardless of the
// session's actual mode, so a verbose plan is never truncated mid-JSON.
func (p *Planner) planWithLLM(ctx context.Context, prompt string, complexity models.PlanComplexity, tools []ToolDescription) (*models.TaskPlan, error) {
	if p.llm == nil {
		return nil, fmt.Errorf("planner: no LLM provider configured")
	}

	req := &agent.CompletionRequest{
		Model:     p.model,
		System:    systemPrompt(tools),
		Messages:  []agent.CompletionMessage{{Role: "user", Content: prompt}},
		MaxTokens: budget.CapsFor(budget.ModeDeep).OutputCap,
	}

	chunks, err := p.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planner: llm complete: %w", err)
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("planner: llm stream: %w", chunk.Error)
		}
		sb.WriteString(chunk.Text)
		if chunk.Done {
			break
		}
	}

	raw := stripThinking(sb.String())
	parsed, err := parseOrRepair(raw)
	if err != nil {
		return nil, err
	}

	if parsed.Type == "conversation" {
		return &models.TaskPlan{
			OriginalPrompt: prompt,
			Complexity:     complexity,
			Parallelizable: true,
			Tasks: []*models.Task{
				{ID: "t1", Description: parsed.Response, Kind: models.TaskKindConversation, Status: models.TaskStatusPending},
			},
		}, nil
	}

	plan := &models.TaskPlan{
		OriginalPrompt: prompt,
		Complexity:     complexity,
	}
	for i, t := range parsed.Tasks {
		if i >= models.MaxPlanTasks {
			break
		}
		args := t.Arguments
		if args == nil && (t.Filename != "" || t.Content != "") {
			args = map[string]any{}
			if t.Filename != "" {
				args["filename"] = t.Filename
			}
			if t.Content != "" {
				args["content"] = t.Content
			}
		}
		kind := models.TaskKindToolCall
		if len(t.Tools) > 1 {
			kind = models.TaskKindMultiStep
		}
		tool := t.Action
		if tool == "" && len(t.Tools) > 0 {
			tool = t.Tools[0]
		}
		plan.Tasks = append(plan.Tasks, &models.Task{
			ID:          "t" + strconv.Itoa(i+1),
			Description: t.Description,
			Kind:        kind,
			Tool:        tool,
			Arguments:   args,
			Status:      models.TaskStatusPending,
		})
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("planner: llm returned no tasks")
	}
	return plan, nil
}

// stripThinking removes any <think>...</think> blocks per the §6 LLM
// interface contract before the response reaches parsing.
func stripThinking(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}

// parseOrRepair parses raw as an llmPlanResponse, attempting one JSON repair
// pass (balance brackets/braces, strip trailing commas) on failure.
func parseOrRepair(raw string) (*llmPlanResponse, error) {
	raw = extractJSONObject(raw)
	var resp llmPlanResponse
	if err := json.Unmarshal([]byte(raw), &resp); err == nil {
		return &resp, nil
	}

	repaired := repairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &resp); err == nil {
		return &resp, nil
	}
	return nil, fmt.Errorf("planner: could not parse LLM plan response")
}

// extractJSONObject trims any leading/trailing prose around the first
// top-level JSON object, in case the model didn't respond with pure JSON.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// repairJSON balances unmatched brackets/braces and strips trailing commas
// before the final closing punctuation.
func repairJSON(s string) string {
	s = strings.TrimSpace(s)

	var closers []rune
	inString := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
			// inside a string literal, brackets don't count
		case r == '{':
			closers = append(closers, '}')
		case r == '[':
			closers = append(closers, ']')
		case r == '}' || r == ']':
			if len(closers) > 0 {
				closers = closers[:len(closers)-1]
			}
		}
	}

	for i := len(closers) - 1; i >= 0; i-- {
		s += string(closers[i])
	}
	return stripTrailingCommas(s)
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// ruleBasedPlan is the fallback decomposition when the LLM response can't be
// parsed or repaired: split the prompt on sequence markers and infer a tool
// per segment from the registered tool names it mentions.
func ruleBasedPlan(prompt string, complexity models.PlanComplexity, tools []ToolDescription) *models.TaskPlan {
	segments := splitOnSequenceMarkers(prompt)
	plan := &models.TaskPlan{OriginalPrompt: prompt, Complexity: complexity}

	for i, seg := range segments {
		if i >= models.MaxPlanTasks {
			break
		}
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		kind := models.TaskKindConversation
		tool := ""
		if hasToolVerb(seg) {
			kind = models.TaskKindToolCall
			tool = inferTool(seg, tools)
		}
		plan.Tasks = append(plan.Tasks, &models.Task{
			ID:          "t" + strconv.Itoa(len(plan.Tasks)+1),
			Description: seg,
			Kind:        kind,
			Tool:        tool,
			Status:      models.TaskStatusPending,
		})
	}

	if len(plan.Tasks) == 0 {
		plan.Tasks = []*models.Task{
			{ID: "t1", Description: prompt, Kind: models.TaskKindConversation, Status: models.TaskStatusPending},
		}
	}
	return plan
}

func splitOnSequenceMarkers(prompt string) []string {
	lower := strings.ToLower(prompt)
	cut := []int{0}
	for _, marker := range sequenceMarkers {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], marker)
			if pos == -1 {
				break
			}
			abs := idx + pos
			cut = append(cut, abs)
			idx = abs + len(marker)
		}
	}
	if len(cut) == 1 {
		return []string{prompt}
	}
	uniqueSorted(cut)

	var segments []string
	for i := 0; i < len(cut); i++ {
		start := cut[i]
		end := len(prompt)
		if i+1 < len(cut) {
			end = cut[i+1]
		}
		segments = append(segments, prompt[start:end])
	}
	return segments
}

func uniqueSorted(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func inferTool(segment string, tools []ToolDescription) string {
	lower := strings.ToLower(segment)
	for _, t := range tools {
		if strings.Contains(lower, strings.ToLower(t.Name)) {
			return t.Name
		}
	}
	// No direct name match: fall back to the first tool whose description
	// shares a verb with the segment.
	for _, t := range tools {
		for _, verb := range toolVerbs {
			if strings.Contains(lower, verb) && strings.Contains(strings.ToLower(t.Description), verb) {
				return t.Name
			}
		}
	}
	return ""
}

// finalize assigns dependency inference and the parallelizable flag: a task
// depends on its immediate predecessor when its description contains a
// back-reference ("it", "that", "the file", ...).
func finalize(plan *models.TaskPlan) {
	if plan == nil {
		return
	}
	if len(plan.Tasks) > models.MaxPlanTasks {
		plan.Tasks = plan.Tasks[:models.MaxPlanTasks]
	}
	for i, t := range plan.Tasks {
		if i == 0 {
			continue
		}
		if containsAny(t.Description, backReferences) {
			t.Dependencies = []string{plan.Tasks[i-1].ID}
		}
	}
	plan.RecomputeParallelizable()
}

// systemPrompt builds the JSON-constrained instruction sent as the system
// message for the planning completion request (spec §4.5 step 3, §6's
// jsonOnly contract expressed through the system prompt since
// agent.CompletionRequest has no dedicated flag for it).
func systemPrompt(tools []ToolDescription) string {
	var sb strings.Builder
	sb.WriteString("You are a task planner. Respond with a single JSON object and nothing else ")
	sb.WriteString("(no prose, no markdown fences). Use exactly one of these two shapes:\n")
	sb.WriteString(`{"type":"conversation","response":"<direct answer to the user>"}` + "\n")
	sb.WriteString(`{"type":"tasks","tasks":[{"description":"...","type":"tool-call","tools":["<tool name>"],"action":"<tool name>","filename":"<optional>","content":"<optional>"}]}` + "\n")
	sb.WriteString(fmt.Sprintf("Produce at most %d tasks.\n", models.MaxPlanTasks))
	if len(tools) > 0 {
		sb.WriteString("Available tools:\n")
		for _, t := range tools {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
		}
	}
	return sb.String()
}
