package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/governance"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/tools"
)

// ConversationState receives every tool result exactly once so the caller
// can fold it back into its conversation.
type ConversationState interface {
	UpdateAfterToolExecution(call llms.ToolCall, content string)
}

// ResultDisplay surfaces every tool result exactly once, independent of the
// conversation state.
type ResultDisplay interface {
	DisplayToolResult(call llms.ToolCall, result llms.ToolCallResponse)
}

// concurrencyLimit caps concurrent tool executions. Tool work is I/O bound
// (network, subprocess waits), so we oversubscribe CPUs.
var concurrencyLimit = func() int {
	limit := runtime.NumCPU() * 4
	if limit < 4 {
		limit = 4
	}
	if limit > 32 {
		limit = 32
	}
	return limit
}()

// Executor validates and runs tool calls concurrently, isolating per-call
// failure. Construct it once per run; the registry and policy are read-only
// while it executes.
type Executor struct {
	Registry *tools.Registry
	Policy   governance.PolicyEngine
	Logger   *observability.Logger

	// SessionID and TaskID annotate log events.
	SessionID string
	TaskID    string
}

// ExecuteToolsDirectly runs the calls in two fully concurrent phases:
// validation (governance policy plus per-tool argument validators) and
// execution. A failure in one call never aborts its siblings. The returned
// order is deterministic for a given input: validation failures first (in
// input order), then execution outcomes (in input order), regardless of
// completion timing. Each result is applied to state and display exactly
// once before the slice is returned.
func (e *Executor) ExecuteToolsDirectly(ctx context.Context, calls []llms.ToolCall, state ConversationState, display ResultDisplay) []llms.ToolCallResponse {
	if len(calls) == 0 {
		return nil
	}

	// Phase 1: validate every call; no short-circuit on first failure.
	verdicts := make([]error, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llms.ToolCall) {
			defer wg.Done()
			verdicts[i] = e.validate(ctx, call)
		}(i, call)
	}
	wg.Wait()

	// Phase 2: execute the calls that passed, bounded by the semaphore.
	outcomes := make([]string, len(calls))
	sem := make(chan struct{}, concurrencyLimit)
	for i, call := range calls {
		if verdicts[i] != nil {
			continue
		}
		wg.Add(1)
		go func(i int, call llms.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = e.run(ctx, call)
		}(i, call)
	}
	wg.Wait()

	// Assembly: validation failures first, then execution outcomes, both in
	// input order.
	results := make([]llms.ToolCallResponse, 0, len(calls))
	resultCalls := make([]llms.ToolCall, 0, len(calls))
	for i, call := range calls {
		if verdicts[i] == nil {
			continue
		}
		results = append(results, llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.FunctionCall.Name,
			Content:    validationContent(verdicts[i]),
		})
		resultCalls = append(resultCalls, call)
	}
	for i, call := range calls {
		if verdicts[i] != nil {
			continue
		}
		results = append(results, llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.FunctionCall.Name,
			Content:    outcomes[i],
		})
		resultCalls = append(resultCalls, call)
	}

	for i, res := range results {
		if state != nil {
			state.UpdateAfterToolExecution(resultCalls[i], res.Content)
		}
		if display != nil {
			display.DisplayToolResult(resultCalls[i], res)
		}
		if e.Logger != nil {
			e.Logger.LogToolResult(e.SessionID, e.TaskID, res.Name, res.Content)
		}
	}

	return results
}

// validate checks one call without executing it. A nil error means the call
// may run.
func (e *Executor) validate(ctx context.Context, call llms.ToolCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := call.FunctionCall.Name
	if !e.Registry.Has(name) {
		// The filter already screened unknown tools; this guards direct use.
		return fmt.Errorf("tool %q does not exist", name)
	}

	if e.Policy != nil {
		res, err := e.Policy.Evaluate(ctx, governance.Request{
			Tool:      name,
			Arguments: call.FunctionCall.Arguments,
			SessionID: e.SessionID,
		})
		if err != nil {
			return fmt.Errorf("policy evaluation failed: %w", err)
		}
		if e.Logger != nil {
			e.Logger.LogPolicyCheck(e.SessionID, name, string(res.Effect), res.Reason)
		}
		if res.Effect == governance.EffectDeny {
			return fmt.Errorf("denied by policy: %s", res.Reason)
		}
	}

	if v, ok := e.Registry.Validator(name); ok {
		if err := v.ValidateArguments(call.FunctionCall.Arguments); err != nil {
			return err
		}
	}

	return nil
}

// run executes one validated call, converting any failure into result
// content for that call only.
func (e *Executor) run(ctx context.Context, call llms.ToolCall) string {
	name := call.FunctionCall.Name

	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("Cancelled: %v", err)
	}

	if e.Logger != nil {
		e.Logger.LogToolCall(e.SessionID, e.TaskID, name, call.FunctionCall.Arguments)
	}

	tool := e.Registry.Get(name)
	result, err := tool.Execute(ctx, call.FunctionCall.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Sprintf("Cancelled: %v", ctx.Err())
		}
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func validationContent(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Cancelled: %v", err)
	}
	return fmt.Sprintf("Validation error: %v", err)
}
