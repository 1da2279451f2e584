package memlayers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/internal/store"
)

// KnowledgeLayer fetches the project's top entries by importance.
type KnowledgeLayer struct {
	store     *store.Store
	projectID string
}

// NewKnowledgeLayer creates a knowledge layer scoped to one project.
func NewKnowledgeLayer(s *store.Store, projectID string) *KnowledgeLayer {
	return &KnowledgeLayer{store: s, projectID: projectID}
}

// Update is a no-op: knowledge entries are written directly through the
// store by the tool that captured them, not by replaying events here.
func (l *KnowledgeLayer) Update(context.Context, Event) error { return nil }

// Gather formats the top-10 entries by importance under a "Project
// Knowledge" header. An empty layer yields a fixed placeholder line.
func (l *KnowledgeLayer) Gather(ctx context.Context, _ string, budgetTokens int) (string, int, error) {
	entries, err := l.store.TopKnowledge(ctx, l.projectID, 10)
	if err != nil {
		return "", 0, fmt.Errorf("memlayers: knowledge gather: %w", err)
	}
	if len(entries) == 0 {
		text := "No project-specific knowledge stored."
		return text, budget.Count(text), nil
	}

	var b strings.Builder
	b.WriteString("Project Knowledge\n")
	for _, e := range entries {
		b.WriteString(e.Key + ": " + e.Value + "\n")
	}

	text := budget.TrimToFit(b.String(), budgetTokens)
	return text, budget.Count(text), nil
}
