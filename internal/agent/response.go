package agent

import (
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// ModelReply is the canonical shape of one model turn: prose content plus
// any native tool calls.
type ModelReply struct {
	Content   string
	ToolCalls []llms.ToolCall
}

// NormalizeResponse collapses a model response into a ModelReply. Providers
// disagree on details (empty choices, tool calls without ids, legacy
// single-function replies), so everything downstream goes through here
// first.
func NormalizeResponse(resp *llms.ContentResponse) ModelReply {
	if resp == nil || len(resp.Choices) == 0 {
		return ModelReply{}
	}

	choice := resp.Choices[0]
	reply := ModelReply{Content: choice.Content}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		if tc.ID == "" {
			tc.ID = uuid.NewString()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		reply.ToolCalls = append(reply.ToolCalls, tc)
	}

	// Legacy function-call channel used by some providers.
	if len(reply.ToolCalls) == 0 && choice.FuncCall != nil {
		reply.ToolCalls = append(reply.ToolCalls, llms.ToolCall{
			ID:           uuid.NewString(),
			Type:         "function",
			FunctionCall: choice.FuncCall,
		})
	}

	return reply
}
