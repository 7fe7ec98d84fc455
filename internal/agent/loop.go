package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// conversationState folds tool results back into the running message list.
// The executor calls it once per result.
type conversationState struct {
	messages *[]llms.MessageContent
}

func (cs *conversationState) UpdateAfterToolExecution(call llms.ToolCall, content string) {
	*cs.messages = append(*cs.messages, llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    content,
			},
		},
	})
}

// executeTask drives one task's request/tool sub-loop: ask the model for
// the next step, run any tool calls through the filter and executor, fold
// the results back, and repeat until the model answers without tools or the
// step budget runs out. The cancellation signal is checked at every step
// boundary and produces a cancellation result, never an unstructured error.
func (c *PlanController) executeTask(ctx context.Context, sessionID string, goal string, task Task) TaskResult {
	systemPrompt := ""
	if c.Prompts != nil {
		if p, err := c.Prompts.GetWorkerPrompt(); err == nil {
			systemPrompt = p
		}
	}

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(fmt.Sprintf(
			"TASK: %s\n\nCONTEXT: This is one task of the overall goal: %s\n\nWhen the task is done, reply without any tool call and describe the outcome.",
			task.Title, goal,
		))},
	})

	var llmTools []llms.Tool
	for _, t := range c.Registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	executor := &Executor{
		Registry:  c.Registry,
		Policy:    c.Policy,
		Logger:    c.Logger,
		SessionID: sessionID,
		TaskID:    task.ID,
	}
	state := &conversationState{messages: &messages}

	observer := func(call llms.ToolCall) {
		if c.Logger != nil {
			c.Logger.LogToolCall(sessionID, task.ID, call.FunctionCall.Name, call.FunctionCall.Arguments)
		}
	}

	for step := 0; step < c.Config.MaxStepsPerTask; step++ {
		if err := ctx.Err(); err != nil {
			return cancellationResult(err)
		}

		resp, err := c.Model.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			if ctx.Err() != nil {
				return cancellationResult(ctx.Err())
			}
			// Transient model failures are the caller's problem to retry;
			// this loop reports them as a task failure.
			return TaskResult{
				Success: false,
				Summary: "model request failed",
				Error:   err.Error(),
			}
		}

		reply := NormalizeResponse(resp)
		if c.Logger != nil {
			c.Logger.LogLLM(sessionID, task.ID, task.Title, reply.Content, reply.ToolCalls)
		}

		// Record the assistant turn before acting on it.
		var assistantParts []llms.ContentPart
		if reply.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: reply.Content})
		}
		for _, tc := range reply.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}

		calls := reply.ToolCalls
		content := reply.Content

		// Fallback: the model embedded its calls in text.
		if len(calls) == 0 {
			extracted := ProcessXMLToolCalls(content, c.Registry, observer)
			calls = extracted.ToolCalls
			content = extracted.CleanedContent
			for _, tc := range extracted.ToolCalls {
				assistantParts = append(assistantParts, tc)
			}
		}

		if len(assistantParts) > 0 {
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: assistantParts,
			})
		}

		// No tool calls at all: the model is done with this task.
		if len(calls) == 0 {
			return TaskResult{
				Success: true,
				Output:  content,
				Summary: summarize(content),
			}
		}

		filtered := FilterValidToolCalls(calls, c.Registry)

		// Filter rejects never reach the executor, so fold them here.
		for _, res := range filtered.ErrorResults {
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{res},
			})
		}

		executor.ExecuteToolsDirectly(ctx, filtered.ValidToolCalls, state, c.Display)
	}

	return TaskResult{
		Success: false,
		Summary: "step budget exhausted",
		Error:   fmt.Sprintf("task did not complete within %d steps", c.Config.MaxStepsPerTask),
	}
}

func cancellationResult(err error) TaskResult {
	return TaskResult{
		Success:   false,
		Cancelled: true,
		Summary:   "cancelled before completion",
		Error:     err.Error(),
	}
}

// summarize keeps the first line of the output, truncated, as the task
// summary.
func summarize(output string) string {
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "done"
	}
	if len(line) > 120 {
		line = line[:117] + "..."
	}
	return line
}
