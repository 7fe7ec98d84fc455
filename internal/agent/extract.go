package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/tools"
)

// ToolNameParseError is the reserved sentinel name for the synthetic call
// the extractor produces when the embedded notation is malformed. The
// filter resolves it into an error result, the same way a validator would
// report a bad call.
const ToolNameParseError = "tool_call_parse_error"

// Models without a native function-calling channel embed calls in text as
//
//	<tool_call>
//	{"name": "git", "arguments": {"subcommand": "status"}}
//	</tool_call>
var (
	toolCallBlockRE = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)
	toolTagRE       = regexp.MustCompile(`<tool[a-zA-Z_]*`)
)

// ExtractResult is what the fallback extractor hands back: parsed calls and
// the content with their blocks removed.
type ExtractResult struct {
	ToolCalls      []llms.ToolCall
	CleanedContent string
}

type xmlToolPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ProcessXMLToolCalls scans content for embedded tool-call notation. It only
// runs when the model produced no native tool calls. Malformed notation
// (opened-but-unclosed block, invalid payload) collapses the whole turn into
// exactly one sentinel call with empty cleaned content, so the model gets a
// single well-formed failure signal instead of partially parsed garbage.
// onToolCall, when non-nil, fires in parse order once the whole content is
// known well-formed: observers only ever see the calls actually returned,
// never calls discarded in favor of the sentinel.
func ProcessXMLToolCalls(content string, registry *tools.Registry, onToolCall func(llms.ToolCall)) ExtractResult {
	if registry == nil || registry.Len() == 0 || content == "" {
		return ExtractResult{CleanedContent: content}
	}

	matches := toolCallBlockRE.FindAllStringSubmatch(content, -1)
	remainder := toolCallBlockRE.ReplaceAllString(content, "")

	// Malformed-call detection runs first: any tool-ish tag left after
	// removing the complete blocks means an unterminated block.
	if toolTagRE.MatchString(remainder) {
		return malformedResult("unterminated tool_call block", onToolCall)
	}

	if len(matches) == 0 {
		return ExtractResult{CleanedContent: content}
	}

	calls := make([]llms.ToolCall, 0, len(matches))
	for _, m := range matches {
		var payload xmlToolPayload
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
			return malformedResult(fmt.Sprintf("invalid tool_call payload: %v", err), onToolCall)
		}
		if strings.TrimSpace(payload.Name) == "" {
			return malformedResult("tool_call payload missing name", onToolCall)
		}

		args := "{}"
		if len(payload.Arguments) > 0 {
			args = string(payload.Arguments)
		}
		calls = append(calls, llms.ToolCall{
			ID:   uuid.NewString(),
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      payload.Name,
				Arguments: args,
			},
		})
	}

	if onToolCall != nil {
		for _, call := range calls {
			onToolCall(call)
		}
	}

	return ExtractResult{
		ToolCalls:      calls,
		CleanedContent: tidyContent(remainder),
	}
}

// malformedResult builds the single sentinel call for unparseable notation.
// Cleaned content is always empty on this path.
func malformedResult(msg string, onToolCall func(llms.ToolCall)) ExtractResult {
	args, _ := json.Marshal(map[string]string{"error": msg})
	call := llms.ToolCall{
		ID:   uuid.NewString(),
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      ToolNameParseError,
			Arguments: string(args),
		},
	}
	if onToolCall != nil {
		onToolCall(call)
	}
	return ExtractResult{ToolCalls: []llms.ToolCall{call}}
}

// tidyContent collapses the blank runs left behind by stripped blocks.
func tidyContent(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
