package memlayers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/internal/embeddings"
	"github.com/vela-dev/agentcore/internal/store"
)

const (
	gitLogCap     = 50
	gitLogCeiling = 3 * time.Second
)

var commitHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GitContextLayer parses and caches recent git history, then ranks cached
// commits by similarity to a query (§4.4). Inert (returns empty, logs once)
// when the project root is not a git repository.
type GitContextLayer struct {
	store     *store.Store
	embedder  *embeddings.Client
	projectID string
	repoPath  string
	logger    *slog.Logger

	mu          sync.Mutex
	initialized bool
	inert       bool
}

// NewGitContextLayer creates a git context layer rooted at repoPath.
func NewGitContextLayer(s *store.Store, c *embeddings.Client, projectID, repoPath string, logger *slog.Logger) *GitContextLayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitContextLayer{
		store:     s,
		embedder:  c,
		projectID: projectID,
		repoPath:  repoPath,
		logger:    logger.With("component", "git-context-layer"),
	}
}

// Update on a git-refresh event runs the first-use history parse if it has
// not run yet. It does not re-read the git log once the parse has run or
// commits are already cached for the project.
func (l *GitContextLayer) Update(ctx context.Context, event Event) error {
	if event.Kind != EventGitRefresh {
		return nil
	}
	return l.ensureParsed(ctx)
}

// Gather ranks cached commits by cosine similarity to query and emits the
// top matches as one-line summaries.
func (l *GitContextLayer) Gather(ctx context.Context, query string, budgetTokens int) (string, int, error) {
	if err := l.ensureParsed(ctx); err != nil {
		return "", 0, err
	}

	l.mu.Lock()
	inert := l.inert
	l.mu.Unlock()
	if inert {
		return "", 0, nil
	}

	commits, err := l.store.ListGitCommits(ctx, l.projectID)
	if err != nil {
		return "", 0, fmt.Errorf("memlayers: git context list commits: %w", err)
	}
	if len(commits) == 0 {
		return "", 0, nil
	}

	queryVec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return "", 0, fmt.Errorf("memlayers: git context embed query: %w", err)
	}

	type scored struct {
		c     *store.GitCommit
		files int
		score float32
	}
	var ranked []scored
	for _, c := range commits {
		vec, err := embeddings.DecodeVector(c.Embedding)
		if err != nil || len(vec) == 0 {
			continue
		}
		sim, err := embeddings.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		var files []string
		_ = json.Unmarshal([]byte(c.FilesChanged), &files)
		ranked = append(ranked, scored{c: c, files: len(files), score: sim})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var b strings.Builder
	used := 0
	for _, r := range ranked {
		hash := r.c.Hash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		line := fmt.Sprintf("%s - %s (%d files)", hash, r.c.Message, r.files)
		next := line
		if b.Len() > 0 {
			next = "\n" + line
		}
		if used+budget.Count(next) > budgetTokens {
			break
		}
		b.WriteString(next)
		used += budget.Count(next)
	}

	return b.String(), used, nil
}

// ensureParsed performs the first-use git history parse, bounded by
// gitLogCap commits and gitLogCeiling wall-clock time. Partial results are
// accepted if the ceiling is hit. A non-git-repo root marks the layer
// inert and logs exactly one warning.
func (l *GitContextLayer) ensureParsed(ctx context.Context) error {
	l.mu.Lock()
	if l.initialized {
		l.mu.Unlock()
		return nil
	}
	l.initialized = true
	l.mu.Unlock()

	has, err := l.store.HasGitCommits(ctx, l.projectID)
	if err != nil {
		return fmt.Errorf("memlayers: git context check cache: %w", err)
	}
	if has {
		return nil
	}

	if !l.isGitRepo(ctx) {
		l.mu.Lock()
		l.inert = true
		l.mu.Unlock()
		l.logger.Warn("project root is not a git repository; git context layer inert", "path", l.repoPath)
		return nil
	}

	deadline := time.Now().Add(gitLogCeiling)
	timeoutCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	entries, err := l.parseRecentCommits(timeoutCtx)
	if err != nil && len(entries) == 0 {
		l.logger.Warn("git log parse failed", "error", err)
		return nil
	}

	for _, e := range entries {
		filesJSON, _ := json.Marshal(e.files)
		text := e.message + " " + strings.Join(e.files, " ")
		vec, embErr := l.embedder.Embed(ctx, text)
		if embErr != nil {
			continue
		}
		_ = l.store.UpsertGitCommit(ctx, &store.GitCommit{
			ProjectID:    l.projectID,
			Hash:         e.hash,
			Author:       e.author,
			Date:         e.date,
			Message:      e.message,
			FilesChanged: string(filesJSON),
			DiffChunks:   "[]",
			Embedding:    embeddings.EncodeVector(vec),
		})
	}
	return nil
}

func (l *GitContextLayer) isGitRepo(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", l.repoPath, "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

type parsedCommit struct {
	hash    string
	author  string
	date    time.Time
	message string
	files   []string
}

// commitFieldSep is a separator unlikely to appear in commit subjects,
// used to split `git log --format` output into fields.
const commitFieldSep = "\x1f"

func (l *GitContextLayer) parseRecentCommits(ctx context.Context) ([]parsedCommit, error) {
	format := strings.Join([]string{"%H", "%an", "%aI", "%s"}, commitFieldSep)
	cmd := exec.CommandContext(ctx, "git", "-C", l.repoPath, "log",
		fmt.Sprintf("-n%d", gitLogCap), "--name-only", "--format="+format)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var commits []parsedCommit
	var current *parsedCommit
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, commitFieldSep)
		if len(fields) == 4 && commitHashPattern.MatchString(fields[0]) {
			if current != nil {
				commits = append(commits, *current)
			}
			date, _ := time.Parse(time.RFC3339, fields[2])
			current = &parsedCommit{hash: fields[0], author: fields[1], date: date, message: fields[3]}
			continue
		}
		if current != nil {
			current.files = append(current.files, line)
		}
	}
	if current != nil {
		commits = append(commits, *current)
	}

	_ = cmd.Wait()
	if len(commits) > gitLogCap {
		commits = commits[:gitLogCap]
	}
	return commits, scanner.Err()
}
