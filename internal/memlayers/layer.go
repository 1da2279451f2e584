// Package memlayers implements the memory layers (§4.4): ephemeral,
// retrieval, knowledge and git-context. Manager composes the knowledge,
// ephemeral and retrieval layers into the ordered prompt the orchestrator
// sends to the LLM; the git-context layer is not part of that prompt.
package memlayers

import "context"

// Layer is the shared contract every memory layer implements.
type Layer interface {
	// Gather produces a formatted fragment for query, bounded by budget
	// tokens, plus the number of tokens it actually used.
	Gather(ctx context.Context, query string, budget int) (text string, tokensUsed int, err error)

	// Update accepts a domain event (new turn, stored knowledge, git
	// refresh). Layers that don't care about a given event type ignore it.
	Update(ctx context.Context, event Event) error
}

// EventKind discriminates the domain events layers subscribe to.
type EventKind string

const (
	EventNewTurn        EventKind = "new_turn"
	EventStoredKnowledge EventKind = "stored_knowledge"
	EventGitRefresh      EventKind = "git_refresh"
	EventWorkingContext  EventKind = "working_context"
)

// Event is a domain event passed to Layer.Update.
type Event struct {
	Kind EventKind

	// NewTurn payload.
	Turn *Turn

	// WorkingContext payload (current file, focus list, last error, diff).
	WorkingContext *WorkingContext
}

// Turn is a single (role, content) message in a session (§3).
type Turn struct {
	Role      string // user, assistant, system
	Content   string
	TokenCount int
}

// WorkingContext is the ephemeral layer's auxiliary state: current file,
// focus file list, last error, current diff.
type WorkingContext struct {
	CurrentFile string
	FocusFiles  []string
	LastError   string
	CurrentDiff string
}
