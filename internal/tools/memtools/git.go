package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/memlayers"
)

// GitHistoryTool exposes the parsed-and-cached git history layer as a tool,
// letting the model ask "which commits touched X" directly.
type GitHistoryTool struct {
	layer *memlayers.GitContextLayer
}

// NewGitHistoryTool creates a git-history search tool over layer.
func NewGitHistoryTool(layer *memlayers.GitContextLayer) *GitHistoryTool {
	return &GitHistoryTool{layer: layer}
}

func (t *GitHistoryTool) Name() string { return "git_history" }

func (t *GitHistoryTool) Description() string {
	return "Search recent commit history for commits related to a query."
}

func (t *GitHistoryTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to search commit history for.",
			},
		},
		"required": []string{"query"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GitHistoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.layer == nil {
		return &agent.ToolResult{Content: "No git history available."}, nil
	}
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), nil
	}

	text, _, err := t.layer.Gather(ctx, input.Query, defaultSearchBudget)
	if err != nil {
		return toolError(fmt.Sprintf("search git history: %v", err)), nil
	}
	if text == "" {
		return &agent.ToolResult{Content: "No matching commits found."}, nil
	}
	return &agent.ToolResult{Content: text}, nil
}
