// Command agentcore is the CLI entry point wiring the token budget manager,
// embeddings client, persistence store, memory layers, tool registry,
// planner, plan executor, approval gate, and orchestrator together (spec
// §6's CLI surface).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vela-dev/agentcore/internal/agent"
	"github.com/vela-dev/agentcore/internal/agent/providers"
	"github.com/vela-dev/agentcore/internal/approvalgate"
	"github.com/vela-dev/agentcore/internal/budget"
	"github.com/vela-dev/agentcore/internal/config"
	embeddingsclient "github.com/vela-dev/agentcore/internal/embeddings"
	"github.com/vela-dev/agentcore/internal/memlayers"
	"github.com/vela-dev/agentcore/internal/memory/embeddings/ollama"
	"github.com/vela-dev/agentcore/internal/memory/embeddings/openai"
	"github.com/vela-dev/agentcore/internal/orchestrator"
	"github.com/vela-dev/agentcore/internal/planner"
	"github.com/vela-dev/agentcore/internal/sessions"
	"github.com/vela-dev/agentcore/internal/store"
	"github.com/vela-dev/agentcore/internal/tools/exec"
	"github.com/vela-dev/agentcore/internal/tools/files"
	"github.com/vela-dev/agentcore/internal/tools/memtools"
	"github.com/vela-dev/agentcore/internal/tools/websearch"
	"github.com/vela-dev/agentcore/pkg/models"
)

// Exit codes (spec §6): 0 success, 1 runtime error, 2 usage error, 130
// interrupted (SIGINT), matching the shell convention 128+signal.
const (
	exitSuccess   = 0
	exitError     = 1
	exitUsage     = 2
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return exitInterrupt
		case isUsageError(err):
			return exitUsage
		default:
			return exitError
		}
	}
	return exitSuccess
}

// usageError marks an error as a CLI-usage mistake rather than a runtime
// failure, so main can choose exit code 2 instead of 1.
type usageError struct{ error }

func isUsageError(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore runs one planned, gated turn of the assistant against a project",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Path to YAML configuration file")

	rootCmd.AddCommand(buildRunCmd(&configPath))
	return rootCmd
}

func buildRunCmd(configPath *string) *cobra.Command {
	var (
		prompt         string
		nonInteractive bool
		approvalMode   string
		sessionMode    string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run one turn of the assistant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				prompt = args[0]
			}
			if strings.TrimSpace(prompt) == "" {
				return &usageError{fmt.Errorf("a prompt is required: pass it as an argument or with --prompt")}
			}
			return runTurn(cmd, *configPath, prompt, nonInteractive, approvalMode, sessionMode)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text (alternative to the positional argument)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for approval; deny anything not already allowed by mode")
	cmd.Flags().StringVar(&approvalMode, "approval-mode", "", "Override approval.mode from config (default, auto-edit, yolo)")
	cmd.Flags().StringVar(&sessionMode, "mode", "", "Override session.default_mode from config (direct, concise, deep)")
	return cmd
}

func runTurn(cmd *cobra.Command, configPath, prompt string, nonInteractive bool, approvalModeFlag, sessionModeFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if approvalModeFlag != "" {
		cfg.Approval.Mode = approvalModeFlag
	}
	if sessionModeFlag != "" {
		cfg.Session.DefaultMode = sessionModeFlag
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dotDir := filepath.Join(cfg.Workspace.RootPath, ".agentcore")
	if err := os.MkdirAll(dotDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dotDir, err)
	}

	lock, err := sessions.NewProjectLock(dotDir)
	if err != nil {
		return fmt.Errorf("create project lock: %w", err)
	}
	if err := lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire project lock: %w", err)
	}
	defer lock.Release() //nolint:errcheck

	db, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	project, err := db.EnsureProject(ctx, cfg.Workspace.RootPath, filepath.Base(cfg.Workspace.RootPath))
	if err != nil {
		return fmt.Errorf("ensure project: %w", err)
	}
	session, err := db.OpenSessionForProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embeddings client: %w", err)
	}

	memory := memlayers.NewManager(
		memlayers.NewEphemeralLayer(),
		memlayers.NewRetrievalLayer(db, embedder, project.ID),
		memlayers.NewKnowledgeLayer(db, project.ID),
		memlayers.NewGitContextLayer(db, embedder, project.ID, cfg.Workspace.RootPath, logger),
	)

	registry := agent.NewToolRegistry()
	for _, t := range buildTools(cfg, memory) {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	var prompter approvalgate.Prompter
	if !nonInteractive {
		prompter = stdinPrompter{}
	}
	gate := approvalgate.NewGate(approvalgate.NewClassifier(nil), prompter, db)

	llmProvider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.Model,
		MaxRetries:   cfg.LLM.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}

	orch := orchestrator.New(orchestrator.Config{
		Store:            db,
		Memory:           memory,
		Planner:          planner.New(llmProvider, cfg.LLM.Model),
		Registry:         registry,
		Gate:             gate,
		ProjectID:        project.ID,
		SnapshotInterval: cfg.Session.SnapshotInterval,
		Sink:             orchestrator.NewCallbackSink(logTurnEvent(logger)),
	})

	result, err := orch.HandleTurn(ctx, session.ID, budget.Mode(cfg.Session.DefaultMode), approvalgate.Mode(cfg.Approval.Mode), prompt)
	if err != nil {
		return fmt.Errorf("handle turn: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Response)
	if !result.Success {
		return fmt.Errorf("turn failed: %s", result.Error)
	}
	return nil
}

// buildTools wires the already-built concrete tools (spec's file/exec/
// websearch/memory operation kinds) into the registry. Of the websearch
// package only the fetch tool is registered; the web search tool is not.
// The git history tool is added only when the memory manager has a git
// layer.
func buildTools(cfg *config.Config, memory *memlayers.Manager) []agent.Tool {
	filesCfg := files.Config{Workspace: cfg.Workspace.RootPath, MaxReadBytes: 1 << 20}
	execManager := exec.NewManager(cfg.Workspace.RootPath)

	tools := []agent.Tool{
		files.NewReadTool(filesCfg),
		files.NewWriteTool(filesCfg),
		files.NewEditTool(filesCfg),
		files.NewApplyPatchTool(filesCfg),
		files.NewLsTool(filesCfg),
		files.NewGrepTool(filesCfg),
		exec.NewExecTool("shell", execManager),
		exec.NewProcessTool(execManager),
		websearch.NewWebFetchTool(&websearch.FetchConfig{MaxChars: 8000}),
		memtools.NewMemorySearchTool(memory.Retrieval, memory.Knowledge),
	}
	if memory.Git != nil {
		tools = append(tools, memtools.NewGitHistoryTool(memory.Git))
	}
	return tools
}

func buildEmbedder(cfg *config.Config) (*embeddingsclient.Client, error) {
	switch strings.ToLower(cfg.Embeddings.Provider) {
	case "openai":
		p, err := openai.New(openai.Config{APIKey: cfg.Embeddings.APIKey, BaseURL: cfg.Embeddings.BaseURL, Model: cfg.Embeddings.Model})
		if err != nil {
			return nil, err
		}
		return embeddingsclient.New(p, cfg.Embeddings.Dimension), nil
	default:
		p, err := ollama.New(ollama.Config{BaseURL: cfg.Embeddings.BaseURL, Model: cfg.Embeddings.Model})
		if err != nil {
			return nil, err
		}
		return embeddingsclient.New(p, cfg.Embeddings.Dimension), nil
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logTurnEvent(logger *slog.Logger) func(ctx context.Context, e models.OrchestrationEvent) {
	return func(_ context.Context, e models.OrchestrationEvent) {
		logger.Debug("orchestration event", "kind", e.Kind, "sessionId", e.SessionID, "payload", e.Payload)
	}
}

// stdinPrompter blocks on a terminal yes/no answer, the CLI's interactive
// approval path (spec §4.7). It never imposes its own timeout.
type stdinPrompter struct{}

func (stdinPrompter) Prompt(ctx context.Context, req approvalgate.PromptRequest) (approvalgate.InteractionChoice, error) {
	fmt.Fprintf(os.Stderr, "\napproval required: %s wants to run %q\n  input: %s\n  sensitivity: %s\n[a]llow once / allow and [r]emember / [d]eny once / deny and re[m]ember: ",
		req.SessionID, req.ToolName, req.Input, req.Sensitivity)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return approvalgate.ChoiceDenyOnce, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "allow":
		return approvalgate.ChoiceApproveOnce, nil
	case "r", "remember":
		return approvalgate.ChoiceApproveRemember, nil
	case "m":
		return approvalgate.ChoiceDenyRemember, nil
	default:
		return approvalgate.ChoiceDenyOnce, nil
	}
}
