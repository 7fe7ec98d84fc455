package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestFilterValidToolCalls_SplitsKnownAndUnknown(t *testing.T) {
	registry := newTestRegistry(t, &fakeTool{name: "git"})

	calls := []llms.ToolCall{
		makeCall("c1", "git", `{"subcommand": "status"}`),
		makeCall("c2", "nope", `{}`),
	}

	res := FilterValidToolCalls(calls, registry)

	require.Len(t, res.ValidToolCalls, 1)
	assert.Equal(t, "c1", res.ValidToolCalls[0].ID)

	require.Len(t, res.ErrorResults, 1)
	assert.Equal(t, "c2", res.ErrorResults[0].ToolCallID)
	assert.Equal(t, "nope", res.ErrorResults[0].Name)
	assert.Contains(t, res.ErrorResults[0].Content, `tool "nope" does not exist`)
}

func TestFilterValidToolCalls_DropsStructurallyInvalidSilently(t *testing.T) {
	registry := newTestRegistry(t, &fakeTool{name: "git"})

	calls := []llms.ToolCall{
		makeCall("", "git", `{}`),                          // missing id
		{ID: "c2", Type: "function", FunctionCall: nil},    // no function call
		makeCall("c3", "   ", `{}`),                        // blank name
		makeCall("c4", "git", `{}`),                        // the only keeper
	}

	res := FilterValidToolCalls(calls, registry)

	require.Len(t, res.ValidToolCalls, 1)
	assert.Equal(t, "c4", res.ValidToolCalls[0].ID)
	assert.Empty(t, res.ErrorResults)
}

func TestFilterValidToolCalls_ParseErrorSentinel(t *testing.T) {
	registry := newTestRegistry(t, &fakeTool{name: "git"})

	calls := []llms.ToolCall{
		makeCall("c1", ToolNameParseError, `{"error": "unterminated tool_call block"}`),
	}

	res := FilterValidToolCalls(calls, registry)

	assert.Empty(t, res.ValidToolCalls)
	require.Len(t, res.ErrorResults, 1)
	assert.Equal(t, "c1", res.ErrorResults[0].ToolCallID)
	assert.Contains(t, res.ErrorResults[0].Content, "malformed tool call")
	assert.Contains(t, res.ErrorResults[0].Content, "unterminated tool_call block")
}

func TestFilterValidToolCalls_PreservesOrder(t *testing.T) {
	registry := newTestRegistry(t, &fakeTool{name: "git"}, &fakeTool{name: "shell"})

	calls := []llms.ToolCall{
		makeCall("c1", "shell", `{}`),
		makeCall("c2", "missing", `{}`),
		makeCall("c3", "git", `{}`),
		makeCall("c4", "also_missing", `{}`),
	}

	res := FilterValidToolCalls(calls, registry)

	require.Len(t, res.ValidToolCalls, 2)
	assert.Equal(t, "c1", res.ValidToolCalls[0].ID)
	assert.Equal(t, "c3", res.ValidToolCalls[1].ID)

	require.Len(t, res.ErrorResults, 2)
	assert.Equal(t, "c2", res.ErrorResults[0].ToolCallID)
	assert.Equal(t, "c4", res.ErrorResults[1].ToolCallID)
}

func TestFilterValidToolCalls_NilRegistry(t *testing.T) {
	calls := []llms.ToolCall{makeCall("c1", "git", `{}`)}

	res := FilterValidToolCalls(calls, nil)

	assert.Empty(t, res.ValidToolCalls)
	require.Len(t, res.ErrorResults, 1)
}
