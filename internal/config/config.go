// Package config loads and validates the YAML configuration file the CLI
// entry point reads on startup, following the teacher's Load/
// applyEnvOverrides/applyDefaults/validateConfig pipeline.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vela-dev/agentcore/internal/approvalgate"
	"github.com/vela-dev/agentcore/internal/budget"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an agentcore session.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Approval   ApprovalConfig   `yaml:"approval"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// WorkspaceConfig points at the project root the session operates on.
type WorkspaceConfig struct {
	RootPath string `yaml:"root_path"`
}

// DatabaseConfig locates the embedded SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig configures the embeddings client (C2).
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// ApprovalConfig sets the default Approval Gate mode (spec §4.7).
type ApprovalConfig struct {
	Mode string `yaml:"mode"`
}

// SessionConfig controls the default session budget mode and snapshot
// cadence.
type SessionConfig struct {
	DefaultMode      string `yaml:"default_mode"`
	SnapshotInterval int    `yaml:"snapshot_interval"`
}

// LoggingConfig configures the slog handler the CLI entry point builds.
// The CLI reads Level only; its handler is always JSON, whatever Format says.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MonitoringConfig holds the monitoring settings. They are defaulted and
// validated here, but no package reads them and no metrics endpoint is started.
type MonitoringConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// DefaultConfigName is used when no config file or profile is found.
const DefaultConfigName = "agentcore.yaml"

// DefaultConfigPath mirrors the teacher's profile.DefaultConfigPath: prefer
// a per-user config directory, falling back to a relative file name if the
// home directory can't be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return DefaultConfigName
	}
	return filepath.Join(home, ".agentcore", "config.yaml")
}

// Load reads, expands, decodes, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers the spec §6 environment variables over whatever
// the YAML file set, so a deployment can override secrets without editing
// the file on disk.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if v := strings.TrimSpace(os.Getenv("APPROVAL_MODE")); v != "" {
		cfg.Approval.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("DEBUG")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil && enabled {
			cfg.Logging.Level = "debug"
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENABLE_MONITORING")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Monitoring.Enabled = enabled
		}
	}

	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("EMBEDDINGS_API_KEY")); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDINGS_BASE_URL")); v != "" {
		cfg.Embeddings.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("DATABASE_PATH")); v != "" {
		cfg.Database.Path = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Workspace.RootPath == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Workspace.RootPath = wd
		} else {
			cfg.Workspace.RootPath = "."
		}
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Workspace.RootPath, ".agentcore", "agentcore.db")
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "ollama"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = 768
	}
	if cfg.Embeddings.CacheSize == 0 {
		cfg.Embeddings.CacheSize = 512
	}

	if cfg.Approval.Mode == "" {
		cfg.Approval.Mode = string(approvalgate.ModeDefault)
	}

	if cfg.Session.DefaultMode == "" {
		cfg.Session.DefaultMode = string(budget.ModeConcise)
	}
	if cfg.Session.SnapshotInterval == 0 {
		cfg.Session.SnapshotInterval = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Monitoring.MetricsPort == 0 {
		cfg.Monitoring.MetricsPort = 9090
	}
}

// ConfigValidationError aggregates every validation failure so users fix
// their config file in one pass instead of one error at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

var (
	validApprovalModes = map[string]bool{
		string(approvalgate.ModeDefault):  true,
		string(approvalgate.ModeAutoEdit): true,
		string(approvalgate.ModeYolo):     true,
	}
	validSessionModes = map[string]bool{
		string(budget.ModeDirect):  true,
		string(budget.ModeConcise): true,
		string(budget.ModeDeep):    true,
	}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if !validApprovalModes[cfg.Approval.Mode] {
		issues = append(issues, fmt.Sprintf("approval.mode must be one of default, auto-edit, yolo (got %q)", cfg.Approval.Mode))
	}
	if !validSessionModes[cfg.Session.DefaultMode] {
		issues = append(issues, fmt.Sprintf("session.default_mode must be one of direct, concise, deep (got %q)", cfg.Session.DefaultMode))
	}
	if cfg.Session.SnapshotInterval < 1 {
		issues = append(issues, "session.snapshot_interval must be >= 1")
	}
	if !validLogLevels[cfg.Logging.Level] {
		issues = append(issues, fmt.Sprintf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	if cfg.LLM.MaxRetries < 0 {
		issues = append(issues, "llm.max_retries must be >= 0")
	}
	if cfg.Monitoring.Enabled && (cfg.Monitoring.MetricsPort <= 0 || cfg.Monitoring.MetricsPort > 65535) {
		issues = append(issues, "monitoring.metrics_port must be a valid TCP port when monitoring is enabled")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
