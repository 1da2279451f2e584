package memlayers

import (
	"context"
	"testing"
	"time"

	"github.com/vela-dev/agentcore/internal/budget"
)

func TestEphemeralLayer_GatherOldestFirst(t *testing.T) {
	l := NewEphemeralLayer()
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_ = l.Update(ctx, Event{Kind: EventNewTurn, Turn: &Turn{Role: "user", Content: content}})
	}

	text, _, err := l.Gather(ctx, "", 5000)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	firstIdx := indexOf(text, "first")
	thirdIdx := indexOf(text, "third")
	if firstIdx < 0 || thirdIdx < 0 || firstIdx > thirdIdx {
		t.Fatalf("expected oldest-first ordering, got %q", text)
	}
}

func TestEphemeralLayer_KeepsMinimumTwoTurns(t *testing.T) {
	l := NewEphemeralLayer()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = l.Update(ctx, Event{Kind: EventNewTurn, Turn: &Turn{Role: "user", Content: "padding padding padding padding padding"}})
	}

	text, _, err := l.Gather(ctx, "", 1)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if text == "" {
		t.Fatal("expected at least the two most recent turns even over budget")
	}
}

func TestEphemeralLayer_LookupTTL(t *testing.T) {
	l := NewEphemeralLayer()
	start := time.Now()
	l.now = func() time.Time { return start }

	l.PutLookup("k", "v")
	got, ok := l.GetLookup("k")
	if !ok || got != "v" {
		t.Fatalf("expected lookup hit, got %q ok=%v", got, ok)
	}

	l.now = func() time.Time { return start.Add(16 * time.Minute) }
	if _, ok := l.GetLookup("k"); ok {
		t.Fatal("expected lookup entry to expire after 15 minutes")
	}
}

func TestEphemeralLayer_WorkingContext(t *testing.T) {
	l := NewEphemeralLayer()
	ctx := context.Background()
	_ = l.Update(ctx, Event{Kind: EventWorkingContext, WorkingContext: &WorkingContext{CurrentFile: "main.go"}})
	_ = l.Update(ctx, Event{Kind: EventNewTurn, Turn: &Turn{Role: "user", Content: "hi"}})

	text, tokens, err := l.Gather(ctx, "", 5000)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if indexOf(text, "main.go") < 0 {
		t.Fatalf("expected working context in output, got %q", text)
	}
	if tokens != budget.Count(text) {
		t.Fatalf("tokens mismatch: got %d want %d", tokens, budget.Count(text))
	}
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
