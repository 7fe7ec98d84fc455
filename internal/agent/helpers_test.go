package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/tools"
)

// fakeTool is a scriptable tool for executor and loop tests.
type fakeTool struct {
	name     string
	desc     string
	execute  func(ctx context.Context, input string) (string, error)
	validate func(input string) error

	mu    sync.Mutex
	calls []string
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return f.desc }
func (f *fakeTool) Parameters() map[string]any  { return map[string]any{"type": "object"} }
func (f *fakeTool) ValidateArguments(in string) error {
	if f.validate != nil {
		return f.validate(in)
	}
	return nil
}

func (f *fakeTool) Execute(ctx context.Context, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx, input)
	}
	return "ok:" + f.name, nil
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tool := range ts {
		if err := r.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name(), err)
		}
	}
	return r
}

// fakeModel replays a scripted sequence of responses. A nil entry produces
// an error for that turn.
type fakeModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	turn      int
	requests  [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	if m.turn >= len(m.responses) {
		return nil, fmt.Errorf("fake model: no response scripted for turn %d", m.turn)
	}
	resp := m.responses[m.turn]
	m.turn++
	if resp == nil {
		return nil, fmt.Errorf("fake model: scripted error")
	}
	return resp, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolResponse(content string, calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content, ToolCalls: calls}},
	}
}

func makeCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}
