package memlayers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/internal/embeddings"
	"github.com/vela-dev/agentcore/internal/store"
)

const (
	initialTopK    = 12
	expandedTopK   = 30
	expandThreshold = 0.7

	recencyWeight   = 0.2
	proximityWeight = 0.3
)

// RetrievalLayer performs embedding-based similarity search over a
// project's indexed chunks (§4.4).
type RetrievalLayer struct {
	store     *store.Store
	embedder  *embeddings.Client
	projectID string

	mu         sync.Mutex
	focusFiles map[string]bool
}

// NewRetrievalLayer creates a retrieval layer scoped to one project.
func NewRetrievalLayer(s *store.Store, c *embeddings.Client, projectID string) *RetrievalLayer {
	return &RetrievalLayer{
		store:      s,
		embedder:   c,
		projectID:  projectID,
		focusFiles: make(map[string]bool),
	}
}

// Update tracks the focus-file list used for proximity scoring.
func (l *RetrievalLayer) Update(_ context.Context, event Event) error {
	if event.Kind != EventWorkingContext || event.WorkingContext == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.focusFiles = make(map[string]bool, len(event.WorkingContext.FocusFiles))
	for _, f := range event.WorkingContext.FocusFiles {
		l.focusFiles[f] = true
	}
	return nil
}

type scoredChunk struct {
	chunk *store.Chunk
	score float32
	sim   float32
}

// Gather embeds query, ranks project chunks by similarity + recency +
// proximity, and emits them until the next chunk would exceed budgetTokens.
func (l *RetrievalLayer) Gather(ctx context.Context, query string, budgetTokens int) (string, int, error) {
	if strings.TrimSpace(query) == "" {
		return "", 0, nil
	}

	queryVec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return "", 0, fmt.Errorf("memlayers: retrieval embed query: %w", err)
	}

	chunks, err := l.store.ListChunks(ctx, l.projectID)
	if err != nil {
		return "", 0, fmt.Errorf("memlayers: retrieval list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return "", 0, nil
	}

	l.mu.Lock()
	focus := l.focusFiles
	l.mu.Unlock()

	now := time.Now()
	scored := make([]scoredChunk, 0, len(chunks))
	for _, c := range chunks {
		vec, err := embeddings.DecodeVector(c.Embedding)
		if err != nil || len(vec) == 0 {
			continue
		}
		sim, err := embeddings.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}

		daysSinceUse := now.Sub(c.LastUsedAt).Hours() / 24
		if daysSinceUse < 0 {
			daysSinceUse = 0
		}
		recency := float32(1.0 / (1.0 + daysSinceUse))
		proximity := float32(0)
		if focus[c.Path] {
			proximity = 1
		}

		rank := sim + recencyWeight*recency + proximityWeight*proximity
		scored = append(scored, scoredChunk{chunk: c, score: rank, sim: sim})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	k := initialTopK
	if k > len(scored) {
		k = len(scored)
	}
	if budgetTokens > 0 && k > 0 && k < len(scored) && scored[k-1].score >= expandThreshold {
		expanded := expandedTopK
		if expanded > len(scored) {
			expanded = len(scored)
		}
		k = expanded
	}
	top := scored[:k]

	var b strings.Builder
	used := 0
	for _, sc := range top {
		fragment := fmt.Sprintf("--- %s (similarity: %.2f) ---\n%s", sc.chunk.Path, sc.sim, sc.chunk.Content)
		next := fragment
		if b.Len() > 0 {
			next = "\n\n" + fragment
		}
		if used+budget.Count(next) > budgetTokens {
			break
		}
		b.WriteString(next)
		used += budget.Count(next)
		_ = l.store.TouchChunk(ctx, sc.chunk.ID)
	}

	return b.String(), used, nil
}
