package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub" }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, input string) (string, error) {
	return "stub output", nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&stubTool{name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&stubTool{name: "beta"}); err != nil {
		t.Fatal(err)
	}

	if err := r.Register(&stubTool{name: "alpha"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if err := r.Register(&stubTool{name: "  "}); err == nil {
		t.Error("expected empty name registration to fail")
	}

	if r.Len() != 2 {
		t.Errorf("expected 2 tools, got %d", r.Len())
	}
	if !r.Has("alpha") || !r.Has("beta") {
		t.Error("registered tools missing")
	}
	if r.Has("gamma") {
		t.Error("unregistered tool reported present")
	}
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		if err := r.Register(&stubTool{name: n}); err != nil {
			t.Fatal(err)
		}
	}

	list := r.List()
	if len(list) != len(names) {
		t.Fatalf("expected %d tools, got %d", len(names), len(list))
	}
	for i, tool := range list {
		if tool.Name() != names[i] {
			t.Errorf("position %d: expected %s, got %s", i, names[i], tool.Name())
		}
	}
}

func TestRegistry_Validator(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "plain"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(NewGitTool(t.TempDir())); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.Validator("plain"); ok {
		t.Error("plain tool should not expose a validator")
	}
	if _, ok := r.Validator("git"); !ok {
		t.Error("git tool should expose a validator")
	}
	if _, ok := r.Validator("missing"); ok {
		t.Error("unknown tool should not expose a validator")
	}
}
