// Package memtools exposes the memory layers as tools an agent can call
// directly, for explicit recall outside the per-turn prompt composition.
package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/memlayers"
)

const defaultSearchBudget = 4000

// MemorySearchTool lets the model explicitly query project memory (retrieval
// and knowledge layers) outside the automatic per-turn prompt composition.
type MemorySearchTool struct {
	retrieval *memlayers.RetrievalLayer
	knowledge *memlayers.KnowledgeLayer
}

// NewMemorySearchTool creates a memory search tool over the given layers.
func NewMemorySearchTool(retrieval *memlayers.RetrievalLayer, knowledge *memlayers.KnowledgeLayer) *MemorySearchTool {
	return &MemorySearchTool{retrieval: retrieval, knowledge: knowledge}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }

func (t *MemorySearchTool) Description() string {
	return "Search project memory (retrieved code chunks and stored knowledge) for a query."
}

func (t *MemorySearchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to search for.",
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

func (t *MemorySearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), nil
	}

	var sections []string
	if t.retrieval != nil {
		text, _, err := t.retrieval.Gather(ctx, input.Query, defaultSearchBudget)
		if err != nil {
			return toolError(fmt.Sprintf("search project chunks: %v", err)), nil
		}
		if text != "" {
			sections = append(sections, text)
		}
	}
	if t.knowledge != nil {
		text, _, err := t.knowledge.Gather(ctx, input.Query, defaultSearchBudget)
		if err != nil {
			return toolError(fmt.Sprintf("search project knowledge: %v", err)), nil
		}
		if text != "" {
			sections = append(sections, text)
		}
	}

	if len(sections) == 0 {
		return &agent.ToolResult{Content: "No relevant memory found."}, nil
	}
	return &agent.ToolResult{Content: strings.Join(sections, "\n\n")}, nil
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, IsError: true}
}
