package memlayers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vela-dev/agentcore/internal/budget"
)

// lookupTTL is the retention window for the ephemeral layer's supplementary
// lookup cache. Entries in this cache are never emitted into the prompt.
const lookupTTL = 15 * time.Minute

// EphemeralLayer is the bounded ring of the most recent turns plus working
// context (current file, focus list, last error, current diff).
type EphemeralLayer struct {
	mu      sync.Mutex
	turns   []*Turn
	working WorkingContext

	lookup map[string]lookupEntry
	now    func() time.Time
}

type lookupEntry struct {
	value   string
	expires time.Time
}

// NewEphemeralLayer creates an empty ephemeral layer.
func NewEphemeralLayer() *EphemeralLayer {
	return &EphemeralLayer{
		lookup: make(map[string]lookupEntry),
		now:    time.Now,
	}
}

// Update appends a new turn or replaces the working context.
func (l *EphemeralLayer) Update(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch event.Kind {
	case EventNewTurn:
		if event.Turn != nil {
			l.turns = append(l.turns, event.Turn)
		}
	case EventWorkingContext:
		if event.WorkingContext != nil {
			l.working = *event.WorkingContext
		}
	}
	return nil
}

// PutLookup stores a transient value in the supplementary lookup cache,
// outside of anything the prompt ever sees.
func (l *EphemeralLayer) PutLookup(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookup[key] = lookupEntry{value: value, expires: l.now().Add(lookupTTL)}
}

// GetLookup fetches a transient value, honoring the 15-minute TTL.
func (l *EphemeralLayer) GetLookup(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.lookup[key]
	if !ok || l.now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

// Gather emits turns oldest-first, dropping the oldest turns until the
// result fits budget tokens. The two
// most recent turns are always kept even if that leaves the result over
// budget (§4.4).
func (l *EphemeralLayer) Gather(_ context.Context, _ string, budgetTokens int) (string, int, error) {
	l.mu.Lock()
	turns := make([]*Turn, len(l.turns))
	copy(turns, l.turns)
	working := l.working
	l.mu.Unlock()

	kept := turns
	for len(kept) > 2 {
		text := formatTurns(kept, working)
		if budget.Count(text) <= budgetTokens {
			break
		}
		kept = kept[1:]
	}

	text := formatTurns(kept, working)
	return text, budget.Count(text), nil
}

func formatTurns(turns []*Turn, working WorkingContext) string {
	var b strings.Builder

	if working.CurrentFile != "" || len(working.FocusFiles) > 0 || working.LastError != "" || working.CurrentDiff != "" {
		b.WriteString("Working context:\n")
		if working.CurrentFile != "" {
			b.WriteString("current file: " + working.CurrentFile + "\n")
		}
		if len(working.FocusFiles) > 0 {
			b.WriteString("focus files: " + strings.Join(working.FocusFiles, ", ") + "\n")
		}
		if working.LastError != "" {
			b.WriteString("last error: " + working.LastError + "\n")
		}
		if working.CurrentDiff != "" {
			b.WriteString("current diff:\n" + working.CurrentDiff + "\n")
		}
		b.WriteString("\n")
	}

	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Role + ": " + t.Content)
	}
	return b.String()
}
