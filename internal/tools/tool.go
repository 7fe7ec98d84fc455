package tools

import (
	"context"
	"fmt"
	"strings"
)

type contextKey string

// SessionIDKey carries the active session ID through tool execution, for
// tools that need it (like schedule_task).
const SessionIDKey contextKey = "sessionID"

// Tool defines the interface for all assistant capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// ArgumentValidator is an optional interface a Tool can implement to have
// its raw JSON arguments checked before execution. Validation failures are
// reported back to the model as tool results instead of being executed.
type ArgumentValidator interface {
	ValidateArguments(input string) error
}

// Registry manages the closed set of available tools. The set is built once
// at startup and is read-only during a run.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Names are checked here, once, so
// lookups during a run never see a malformed entry.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Validator returns the tool's argument validator, if it exposes one.
func (r *Registry) Validator(name string) (ArgumentValidator, bool) {
	v, ok := r.tools[name].(ArgumentValidator)
	return v, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.tools)
}
