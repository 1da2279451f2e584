package approvalgate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PermissionPolicy is the separate, per-agent access-control layer that sits
// alongside the mode x sensitivity gate: it decides whether a tool is
// reachable at all for an agent, independent of how it would be classified.
type PermissionPolicy struct {
	Allow          []string
	Deny           []string
	DangerousTools map[string]bool
	ReadOnly       bool
	NetworkAccess  bool
}

// forbiddenPathSubstrings flags paths that should never be touched by a tool
// even when the path itself resolves inside the workspace.
var forbiddenPathSubstrings = []string{".env", "secret", "password", "key", "token"}

// forbiddenPathPrefixes are absolute system locations that are off limits
// regardless of workspace scoping.
var forbiddenPathPrefixes = []string{"/etc", "/sys", "/proc", "/root/.ssh", "/var/run"}

// IsToolAllowed reports whether toolName may be invoked under this policy.
func (p PermissionPolicy) IsToolAllowed(toolName string) bool {
	name := strip(toolName)
	for _, d := range p.Deny {
		if strip(d) == name {
			return false
		}
	}
	if p.ReadOnly && p.DangerousTools[name] {
		return false
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if strip(a) == name {
			return true
		}
	}
	return false
}

// CheckPath rejects traversal attempts, home-relative paths, system paths,
// and paths that look like they point at secrets.
func CheckPath(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return fmt.Errorf("approvalgate: empty path")
	}
	if strings.Contains(trimmed, "..") {
		return fmt.Errorf("approvalgate: path %q contains a traversal segment", path)
	}
	if strings.HasPrefix(trimmed, "~") {
		return fmt.Errorf("approvalgate: path %q is home-relative", path)
	}

	clean := filepath.Clean(trimmed)
	lower := strings.ToLower(clean)
	for _, prefix := range forbiddenPathPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return fmt.Errorf("approvalgate: path %q is under a system directory", path)
		}
	}
	for _, substr := range forbiddenPathSubstrings {
		if strings.Contains(lower, substr) {
			return fmt.Errorf("approvalgate: path %q looks like it references a secret", path)
		}
	}
	return nil
}
