package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/governance"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/tools"
)

// Assistant is what gateways and the scheduler talk to: one goal in, one
// user-facing answer out.
type Assistant interface {
	Run(ctx context.Context, sessionID string, goal string) (string, error)
}

// HistoryStore persists the conversation across runs.
type HistoryStore interface {
	AddMessage(sessionID string, role string, content string) error
	GetHistory(sessionID string, limit int) ([]llms.MessageContent, error)
}

// ReplanDecision is the outcome of one replanning pass.
type ReplanDecision struct {
	CanProceed bool
	Reason     string
}

// PlanController decomposes a goal into a plan, drives task execution in
// order, and applies the replanning policy on failure. One controller
// serves one interactive session at a time; the plan store is the only
// state it shares with observers.
type PlanController struct {
	Model    llms.Model
	Registry *tools.Registry
	Store    *PlanStore
	Prompts  *PromptManager
	History  HistoryStore
	Policy   governance.PolicyEngine
	Logger   *observability.Logger
	Config   PlanningConfig

	// Display receives every tool result; OnTaskResult fires once per
	// finished task. Both are optional.
	Display      ResultDisplay
	OnTaskResult func(Task, TaskResult)

	sessionID string
}

func NewPlanController(model llms.Model, registry *tools.Registry, store *PlanStore, prompts *PromptManager, history HistoryStore, policy governance.PolicyEngine, logger *observability.Logger, config PlanningConfig) *PlanController {
	return &PlanController{
		Model:    model,
		Registry: registry,
		Store:    store,
		Prompts:  prompts,
		History:  history,
		Policy:   policy,
		Logger:   logger,
		Config:   config,
	}
}

// Run executes one user goal end to end: analyze, plan, execute tasks in
// order, replan on failure within budget, and consolidate a final answer.
// The plan is cleared when the run ends, however it ends.
func (c *PlanController) Run(ctx context.Context, sessionID string, goal string) (string, error) {
	c.sessionID = sessionID
	ctx = context.WithValue(ctx, tools.SessionIDKey, sessionID)

	observability.SetStatus(observability.RolePlanning, goal)
	defer observability.SetStatus(observability.RoleIdle, "")

	analysis := AnalyzeQuery(goal)
	if _, err := c.CreateTaskPlan(ctx, goal, analysis); err != nil {
		return "", fmt.Errorf("planning failed: %w", err)
	}
	defer c.Store.Clear()

	replansUsed := 0
	cancelled := false

	for {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		task, ok, err := c.Store.NextTask()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		if err := c.Store.MarkInProgress(task.ID); err != nil {
			// Store misuse is a programming error; halt the run.
			return "", err
		}

		observability.SetStatus(observability.RoleExecuting, task.Title)
		result := c.executeTask(ctx, sessionID, goal, task)

		if result.Success {
			if err := c.Store.MarkCompleted(task.ID, result); err != nil {
				return "", err
			}
		} else {
			if err := c.Store.MarkFailed(task.ID, result); err != nil {
				return "", err
			}
		}

		if c.Logger != nil {
			status := "completed"
			if !result.Success {
				status = "failed"
			}
			c.Logger.LogTask(sessionID, task.ID, task.Title, status)
		}
		if c.OnTaskResult != nil {
			c.OnTaskResult(task, result)
		}

		if result.Cancelled {
			cancelled = true
			break
		}

		if c.shouldReplan(result) {
			decision := c.simpleReplan(&replansUsed)
			if !decision.CanProceed {
				if c.Logger != nil {
					c.Logger.LogTask(sessionID, task.ID, task.Title, "halted: "+decision.Reason)
				}
				break
			}
		}
	}

	answer := c.finalAnswer(ctx, goal, cancelled)

	if c.History != nil {
		_ = c.History.AddMessage(sessionID, "human", goal)
		_ = c.History.AddMessage(sessionID, "ai", answer)
	}

	return answer, nil
}

// shouldReplan is true only when the task that just finished failed. Blocked
// tasks are created exclusively by that failure (MarkFailed blocks the
// direct dependents in the same transition), so a successful task can never
// leave new blocks behind — and must never consume replan budget.
func (c *PlanController) shouldReplan(last TaskResult) bool {
	return !last.Success
}

// simpleReplan applies the bounded recovery policy: pending tasks whose
// dependency chain is unsatisfiable are skipped, and the run halts once the
// replan budget is spent.
func (c *PlanController) simpleReplan(used *int) ReplanDecision {
	*used++
	if *used > c.Config.MaxReplans {
		return ReplanDecision{CanProceed: false, Reason: "replan budget exhausted"}
	}

	plan, err := c.Store.Plan()
	if err != nil {
		return ReplanDecision{CanProceed: false, Reason: err.Error()}
	}

	doomed := make(map[string]bool)
	for _, t := range plan.Tasks {
		if t.Status == TaskFailed || t.Status == TaskBlocked || t.Status == TaskSkipped {
			doomed[t.ID] = true
		}
	}

	// Sweep transitively unreachable pending tasks.
	for changed := true; changed; {
		changed = false
		for _, t := range plan.Tasks {
			if t.Status != TaskPending || doomed[t.ID] {
				continue
			}
			for _, dep := range t.Dependencies {
				if doomed[dep] {
					if err := c.Store.MarkSkipped(t.ID); err == nil {
						doomed[t.ID] = true
						changed = true
					}
					break
				}
			}
		}
	}

	return ReplanDecision{CanProceed: true}
}

// finalAnswer consolidates task outcomes into the user-facing response. We
// ask the model for prose and fall back to a plain outcome list if that
// call fails.
func (c *PlanController) finalAnswer(ctx context.Context, goal string, cancelled bool) string {
	plan, err := c.Store.Plan()
	if err != nil {
		return "The run ended before a plan was available."
	}

	var outcomes []string
	for _, t := range plan.Tasks {
		line := fmt.Sprintf("- [%s] %s", t.Status, t.Title)
		if t.Result != nil && t.Result.Summary != "" {
			line += ": " + t.Result.Summary
		}
		outcomes = append(outcomes, line)
	}
	report := strings.Join(outcomes, "\n")

	if cancelled {
		return "The run was cancelled before all tasks finished.\n\n" + report
	}
	if ctx.Err() != nil {
		return report
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart("You are a coding assistant. Summarize the outcome of the work below for the user in a few sentences. Be concrete about what was done and what failed, if anything.")},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(fmt.Sprintf("Goal: %s\n\nTask outcomes:\n%s", goal, report))},
		},
	}

	resp, err := c.Model.GenerateContent(ctx, messages)
	if err != nil {
		return report
	}
	reply := NormalizeResponse(resp)
	if strings.TrimSpace(reply.Content) == "" {
		return report
	}
	return reply.Content
}
