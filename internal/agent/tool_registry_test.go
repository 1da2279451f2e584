package agent

import (
	"context"
	"encoding/json"
	"testing"
)

func schemaRequiringQuery() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)
}

type schemaTool struct {
	name   string
	schema json.RawMessage
}

func (s *schemaTool) Name() string            { return s.name }
func (s *schemaTool) Description() string     { return "schema-validated test tool" }
func (s *schemaTool) Schema() json.RawMessage { return s.schema }
func (s *schemaTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := NewToolRegistry()
	tool := &schemaTool{name: "search", schema: schemaRequiringQuery()}
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := r.Get("search")
	if !ok || got.Name() != "search" {
		t.Fatalf("Get(search) = %v, %v", got, ok)
	}
}

func TestToolRegistry_RegisterRejectsNilOrUnnamed(t *testing.T) {
	r := NewToolRegistry()
	if err := r.Register(nil); err == nil {
		t.Fatal("expected Register(nil) to error")
	}
	if err := r.Register(&schemaTool{name: "  "}); err == nil {
		t.Fatal("expected Register with blank name to error")
	}
}

func TestToolRegistry_ExecuteValidatesParamsAgainstSchema(t *testing.T) {
	r := NewToolRegistry()
	if err := r.Register(&schemaTool{name: "search", schema: schemaRequiringQuery()}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := r.Execute(context.Background(), "search", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected Execute to reject params missing the required field")
	}

	result, err := r.Execute(context.Background(), "search", json.RawMessage(`{"query":"hello"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "ok" {
		t.Fatalf("Execute content = %q, want ok", result.Content)
	}
}

func TestToolRegistry_ExecuteUnknownToolErrors(t *testing.T) {
	r := NewToolRegistry()
	if _, err := r.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected Execute on an unregistered tool to error")
	}
}

func TestToolRegistry_UnregisterRemovesTool(t *testing.T) {
	r := NewToolRegistry()
	_ = r.Register(&schemaTool{name: "search", schema: schemaRequiringQuery()})
	r.Unregister("search")
	if _, ok := r.Get("search"); ok {
		t.Fatal("expected search to be unregistered")
	}
}

func TestToolRegistry_NamesAndAsLLMToolsAreSorted(t *testing.T) {
	r := NewToolRegistry()
	_ = r.Register(&schemaTool{name: "zeta"})
	_ = r.Register(&schemaTool{name: "alpha"})
	_ = r.Register(&schemaTool{name: "mid"})

	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("Names()[%d] = %q, want %q", i, names[i], n)
		}
	}

	tools := r.AsLLMTools()
	for i, n := range want {
		if tools[i].Name() != n {
			t.Fatalf("AsLLMTools()[%d].Name() = %q, want %q", i, tools[i].Name(), n)
		}
	}
}
