package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/tools"
)

// FilterResult splits candidate calls into executable ones and synthetic
// error results for the rest.
type FilterResult struct {
	ValidToolCalls []llms.ToolCall
	ErrorResults   []llms.ToolCallResponse
}

// FilterValidToolCalls rejects structurally invalid or unknown-tool
// invocations. Calls with a missing id or blank function name are noise and
// are dropped silently; calls naming an unregistered tool produce an error
// result so the model hears back exactly once per call. Pure function: no
// I/O, deterministic for a given registry.
func FilterValidToolCalls(calls []llms.ToolCall, registry *tools.Registry) FilterResult {
	var out FilterResult

	for _, call := range calls {
		if call.ID == "" || call.FunctionCall == nil {
			continue
		}
		name := strings.TrimSpace(call.FunctionCall.Name)
		if name == "" {
			continue
		}

		if name == ToolNameParseError {
			out.ErrorResults = append(out.ErrorResults, llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    parseErrorMessage(call.FunctionCall.Arguments),
			})
			continue
		}

		if registry == nil || !registry.Has(name) {
			out.ErrorResults = append(out.ErrorResults, llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    fmt.Sprintf("Error: tool %q does not exist", name),
			})
			continue
		}

		out.ValidToolCalls = append(out.ValidToolCalls, call)
	}

	return out
}

// parseErrorMessage recovers the extractor's message from the sentinel
// call's arguments.
func parseErrorMessage(args string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("Error: malformed tool call: %s", payload.Error)
	}
	return "Error: malformed tool call"
}
