package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "workspace:\n  root_path: /tmp/proj\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval.Mode != "default" {
		t.Errorf("expected default approval mode, got %q", cfg.Approval.Mode)
	}
	if cfg.Session.DefaultMode != "concise" {
		t.Errorf("expected concise session mode, got %q", cfg.Session.DefaultMode)
	}
	if cfg.Session.SnapshotInterval != 3 {
		t.Errorf("expected snapshot interval 3, got %d", cfg.Session.SnapshotInterval)
	}
	if cfg.Database.Path == "" {
		t.Error("expected a derived database path")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "approval:\n  mode: yolo\n")

	t.Setenv("APPROVAL_MODE", "auto-edit")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval.Mode != "auto-edit" {
		t.Errorf("expected env override to win, got %q", cfg.Approval.Mode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected DEBUG=true to force debug logging, got %q", cfg.Logging.Level)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "not_a_real_field: 1\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoad_RejectsMultiDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "approval:\n  mode: yolo\n---\napproval:\n  mode: default\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a multi-document config file")
	}
}

func TestValidateConfig_RejectsBadApprovalMode(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Approval.Mode = "not-a-mode"

	err := validateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *ConfigValidationError
	if !asConfigValidationError(err, &verr) {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(verr.Issues) == 0 {
		t.Fatal("expected at least one issue")
	}
}

func asConfigValidationError(err error, target **ConfigValidationError) bool {
	if verr, ok := err.(*ConfigValidationError); ok {
		*target = verr
		return true
	}
	return false
}
