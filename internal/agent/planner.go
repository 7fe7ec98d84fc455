package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/observability"
)

// AnalyzeQuery classifies the user goal to parameterize plan creation. It
// is deliberately cheap: keyword heuristics, no model round-trip.
func AnalyzeQuery(goal string) QueryAnalysis {
	lower := strings.ToLower(goal)

	taskType := "general"
	switch {
	case containsAny(lower, "fix", "bug", "crash", "error", "broken", "fails"):
		taskType = "debug"
	case containsAny(lower, "refactor", "clean up", "rename", "restructure"):
		taskType = "refactor"
	case containsAny(lower, "add", "implement", "create", "write", "build"):
		taskType = "feature"
	case containsAny(lower, "explain", "what", "how", "why", "find", "search"):
		taskType = "research"
	}

	words := len(strings.Fields(goal))
	// " and then " contains both conjunctions but marks a single step.
	steps := 1 + strings.Count(lower, " and ") + strings.Count(lower, " then ") -
		strings.Count(lower, " and then ")

	complexity := "simple"
	estimated := 1
	switch {
	case words > 40 || steps >= 3:
		complexity = "complex"
		estimated = steps + 2
	case words > 12 || steps >= 2:
		complexity = "moderate"
		estimated = steps + 1
	}

	return QueryAnalysis{
		TaskType:       taskType,
		Complexity:     complexity,
		EstimatedTasks: estimated,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// proposePlanTool is the function definition the planner model fills in.
func proposePlanTool(maxTasks int) []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "propose_plan",
				Description: fmt.Sprintf("Submit an ordered plan of at most %d tasks for the user's goal.", maxTasks),
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tasks": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"id": map[string]any{
										"type":        "string",
										"description": "Short stable id, e.g. 't1'",
									},
									"title": map[string]any{
										"type":        "string",
										"description": "What this task accomplishes",
									},
									"dependencies": map[string]any{
										"type":        "array",
										"items":       map[string]any{"type": "string"},
										"description": "Ids of tasks that must complete first",
									},
								},
								"required": []string{"id", "title"},
							},
						},
					},
					"required": []string{"tasks"},
				},
			},
		},
	}
}

type proposedPlan struct {
	Tasks []struct {
		ID           string   `json:"id"`
		Title        string   `json:"title"`
		Dependencies []string `json:"dependencies"`
	} `json:"tasks"`
}

// CreateTaskPlan asks the model to decompose the goal and registers the
// resulting plan in the store. A trivial goal, or any planner failure,
// still yields a single-task plan: the run never starts without one.
func (c *PlanController) CreateTaskPlan(ctx context.Context, goal string, analysis QueryAnalysis) (TaskPlan, error) {
	if err := ctx.Err(); err != nil {
		return TaskPlan{}, err
	}

	tasks, order, err := c.proposePlan(ctx, goal, analysis)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Log(observability.Event{
				Type:      observability.EventTypePlan,
				SessionID: c.sessionID,
				Data:      map[string]string{"fallback": err.Error()},
			})
		}
		tasks = []Task{{ID: "t1", Title: goal, Status: TaskPending}}
		order = []string{"t1"}
	}

	plan, err := c.Store.CreatePlan(goal, tasks, order)
	if err != nil {
		// The model produced a structurally broken plan; fall back rather
		// than surfacing a planner quality problem as a run failure.
		plan, err = c.Store.CreatePlan(goal, []Task{{ID: "t1", Title: goal, Status: TaskPending}}, []string{"t1"})
		if err != nil {
			return TaskPlan{}, err
		}
	}

	if c.Logger != nil {
		c.Logger.LogPlan(c.sessionID, plan.ID, len(plan.Tasks), goal)
	}
	return plan, nil
}

// proposePlan runs the single planner round-trip.
func (c *PlanController) proposePlan(ctx context.Context, goal string, analysis QueryAnalysis) ([]Task, []string, error) {
	plannerPrompt := defaultPlannerPrompt
	if c.Prompts != nil {
		if p, err := c.Prompts.GetPlannerPrompt(); err == nil && p != "" {
			plannerPrompt = p
		}
	}

	var toolDescriptions []string
	for _, t := range c.Registry.List() {
		toolDescriptions = append(toolDescriptions, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(fmt.Sprintf(
				"%s\n\n## Available Tools:\n%s\n\nGoal type: %s, complexity: %s. Aim for about %d tasks, never more than %d.",
				plannerPrompt, strings.Join(toolDescriptions, "\n"),
				analysis.TaskType, analysis.Complexity, analysis.EstimatedTasks, c.Config.MaxTasks,
			))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(goal)},
		},
	}

	resp, err := c.Model.GenerateContent(ctx, messages, llms.WithTools(proposePlanTool(c.Config.MaxTasks)))
	if err != nil {
		return nil, nil, err
	}

	reply := NormalizeResponse(resp)
	for _, tc := range reply.ToolCalls {
		if tc.FunctionCall.Name != "propose_plan" {
			continue
		}
		var proposed proposedPlan
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &proposed); err != nil {
			return nil, nil, fmt.Errorf("failed to parse propose_plan arguments: %v", err)
		}
		return buildTasks(proposed, c.Config.MaxTasks)
	}

	return nil, nil, fmt.Errorf("planner did not call propose_plan")
}

// buildTasks converts the model's proposal into store-ready tasks, clamping
// to the task budget. Execution order is the listed order.
func buildTasks(proposed proposedPlan, maxTasks int) ([]Task, []string, error) {
	if len(proposed.Tasks) == 0 {
		return nil, nil, fmt.Errorf("planner proposed an empty plan")
	}

	raw := proposed.Tasks
	if len(raw) > maxTasks {
		raw = raw[:maxTasks]
	}

	kept := make(map[string]bool, len(raw))
	tasks := make([]Task, 0, len(raw))
	order := make([]string, 0, len(raw))
	for i, t := range raw {
		id := strings.TrimSpace(t.ID)
		if id == "" || kept[id] {
			id = fmt.Sprintf("t%d", i+1)
		}
		kept[id] = true
		tasks = append(tasks, Task{
			ID:           id,
			Title:        t.Title,
			Status:       TaskPending,
			Dependencies: t.Dependencies,
		})
		order = append(order, id)
	}

	// Dependencies on clamped-away tasks would deadlock the plan.
	for i := range tasks {
		var deps []string
		for _, d := range tasks[i].Dependencies {
			if kept[d] {
				deps = append(deps, d)
			}
		}
		tasks[i].Dependencies = deps
	}

	return tasks, order, nil
}

const defaultPlannerPrompt = `You are the planning half of a coding assistant. Decompose the user's goal into a short ordered list of concrete tasks. Each task should be completable with the available tools. Prefer fewer, larger tasks over many small ones. Declare a dependency only when a task genuinely needs another task's outcome.`
