package memlayers

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/vela-dev/agentcore/internal/embeddings"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	run("add", "README.md")
	run("commit", "-q", "-m", "initial commit")
	return dir
}

func TestGitContextLayer_InertForNonGitRoot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p, _ := s.EnsureProject(ctx, "/workspace/not-git", "not-git")
	client := embeddings.New(&fakeEmbeddingProvider{dim: 8}, 8)

	l := NewGitContextLayer(s, client, p.ID, t.TempDir(), nil)
	text, tokens, err := l.Gather(ctx, "anything", 2000)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if text != "" || tokens != 0 {
		t.Fatalf("expected inert layer to return empty, got %q", text)
	}
}

func TestGitContextLayer_ParsesAndRanksCommits(t *testing.T) {
	ctx := context.Background()
	repo := initTestRepo(t)
	s := newTestStore(t)
	p, _ := s.EnsureProject(ctx, repo, "repo")
	client := embeddings.New(&fakeEmbeddingProvider{dim: 8}, 8)

	l := NewGitContextLayer(s, client, p.ID, repo, nil)
	text, _, err := l.Gather(ctx, "initial commit", 2000)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if indexOf(text, "initial commit") < 0 {
		t.Fatalf("expected commit summary in output, got %q", text)
	}
}
