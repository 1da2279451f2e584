package memlayers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vela-dev/agentcore/internal/budget"
)

// Manager composes the full prompt as the ordered set defined in §4.4:
// system preamble, mode declaration, knowledge, ephemeral, retrieved, user
// query, output contract.
type Manager struct {
	Ephemeral *EphemeralLayer
	Retrieval *RetrievalLayer
	Knowledge *KnowledgeLayer
	Git       *GitContextLayer
}

// NewManager composes a Memory Manager from its four layers. Git may be nil
// for projects where git context is not relevant (the layer being inert for
// non-git roots is handled inside GitContextLayer itself).
func NewManager(ephemeral *EphemeralLayer, retrieval *RetrievalLayer, knowledge *KnowledgeLayer, git *GitContextLayer) *Manager {
	return &Manager{Ephemeral: ephemeral, Retrieval: retrieval, Knowledge: knowledge, Git: git}
}

// ComposeOptions controls optional parts of the composed prompt.
type ComposeOptions struct {
	IncludeExplanation bool
}

// Compose builds the full ordered prompt for one turn, enforcing that total
// input tokens stay within the mode's input ceiling (§4.1, §4.4).
func (m *Manager) Compose(ctx context.Context, query string, b *budget.Manager, opts ComposeOptions) (string, error) {
	var sections []string

	sections = append(sections, systemPreamble())
	sections = append(sections, modeDeclaration(b.Mode()))

	knowledgeText, _, err := m.Knowledge.Gather(ctx, query, budget.Target(budget.SectionKnowledge))
	if err != nil {
		return "", fmt.Errorf("memlayers: compose knowledge: %w", err)
	}
	if err := b.AddTo(budget.SectionKnowledge, knowledgeText); err != nil {
		knowledgeText = budget.TrimToFit(knowledgeText, budget.Target(budget.SectionKnowledge))
		_ = b.AddTo(budget.SectionKnowledge, knowledgeText)
	}
	sections = append(sections, knowledgeText)

	ephemeralText, _, err := m.Ephemeral.Gather(ctx, query, budget.Target(budget.SectionEphemeral))
	if err != nil {
		return "", fmt.Errorf("memlayers: compose ephemeral: %w", err)
	}
	if err := b.AddTo(budget.SectionEphemeral, ephemeralText); err != nil {
		ephemeralText = budget.TrimToFit(ephemeralText, budget.Target(budget.SectionEphemeral))
		_ = b.AddTo(budget.SectionEphemeral, ephemeralText)
	}
	sections = append(sections, ephemeralText)

	// Retrieved gets the remaining budget of its own section, per §4.4.
	retrievedBudget := b.Remaining(budget.SectionRetrieved)
	retrievedText, _, err := m.Retrieval.Gather(ctx, query, retrievedBudget)
	if err != nil {
		return "", fmt.Errorf("memlayers: compose retrieval: %w", err)
	}
	if err := b.AddTo(budget.SectionRetrieved, retrievedText); err != nil {
		retrievedText = budget.TrimToFit(retrievedText, budget.Target(budget.SectionRetrieved))
		_ = b.AddTo(budget.SectionRetrieved, retrievedText)
	}
	sections = append(sections, retrievedText)

	queryText := "User query: " + query
	if err := b.AddTo(budget.SectionQuery, queryText); err != nil {
		queryText = budget.TrimToFit(queryText, budget.Target(budget.SectionQuery))
		_ = b.AddTo(budget.SectionQuery, queryText)
	}
	sections = append(sections, queryText)

	sections = append(sections, outputContract(opts.IncludeExplanation))

	prompt := strings.Join(filterEmpty(sections), "\n\n")
	return prompt, nil
}

func systemPreamble() string {
	return "Reason internally; do not emit your reasoning unless explicitly asked. " +
		"Obey the output contract below exactly."
}

func modeDeclaration(mode budget.Mode) string {
	caps := budget.CapsFor(mode)
	return fmt.Sprintf("Mode: %s. Output cap: %d tokens. Reasoning cap: %d tokens. Output format: the JSON shape in the output contract.",
		mode, caps.OutputCap, caps.ReasoningCap)
}

func outputContract(includeExplanation bool) string {
	if includeExplanation {
		return `Output contract: respond with exactly {"code": <string>, "explanation": <string>}.`
	}
	return `Output contract: respond with exactly {"code": <string>, "explanation": null}.`
}

func filterEmpty(sections []string) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
