package approvalgate

import "testing"

func TestPermissionPolicy_DenyListWins(t *testing.T) {
	p := PermissionPolicy{Allow: []string{"exec"}, Deny: []string{"exec"}}
	if p.IsToolAllowed("exec") {
		t.Fatal("expected deny list to take priority over allow list")
	}
}

func TestPermissionPolicy_ReadOnlyBlocksDangerousTools(t *testing.T) {
	p := PermissionPolicy{ReadOnly: true, DangerousTools: map[string]bool{"write": true}}
	if p.IsToolAllowed("write") {
		t.Fatal("expected read-only policy to block a dangerous tool")
	}
	if !p.IsToolAllowed("read") {
		t.Fatal("expected read-only policy to allow a non-dangerous tool")
	}
}

func TestPermissionPolicy_EmptyAllowListAllowsAll(t *testing.T) {
	p := PermissionPolicy{}
	if !p.IsToolAllowed("anything") {
		t.Fatal("expected an empty allow list to permit any non-denied tool")
	}
}

func TestPermissionPolicy_NonEmptyAllowListRestricts(t *testing.T) {
	p := PermissionPolicy{Allow: []string{"read", "ls"}}
	if !p.IsToolAllowed("read") {
		t.Fatal("expected read to be allowed")
	}
	if p.IsToolAllowed("exec") {
		t.Fatal("expected exec to be rejected when not in the allow list")
	}
}

func TestCheckPath_AcceptsOrdinaryWorkspacePaths(t *testing.T) {
	ok := []string{"main.go", "internal/tools/files/read.go", "./README.md"}
	for _, p := range ok {
		if err := CheckPath(p); err != nil {
			t.Errorf("CheckPath(%q) = %v, want nil", p, err)
		}
	}
}

func TestCheckPath_RejectsEmpty(t *testing.T) {
	if err := CheckPath("   "); err == nil {
		t.Fatal("expected CheckPath to reject a blank path")
	}
}
