package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type JobStore interface {
	AddJob(sessionID string, goal string, intervalSeconds int) error
	ClearJobs(sessionID string) error
}

// CronTool lets the assistant register recurring goals (nightly test runs,
// dependency checks) that the background scheduler picks up.
type CronTool struct {
	Store JobStore
}

func NewCronTool(store JobStore) *CronTool {
	return &CronTool{Store: store}
}

func (c *CronTool) Name() string {
	return "schedule_task"
}

func (c *CronTool) Description() string {
	return "Manage recurring jobs: 'schedule' a goal to run on an interval, or 'clear' all current jobs."
}

func (c *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"schedule", "clear"},
				"description": "The action to perform: 'schedule' a new job or 'clear' all of them.",
			},
			"goal": map[string]any{
				"type":        "string",
				"description": "What the assistant should do (only for 'schedule' action)",
			},
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "The interval in seconds (minimum 60s, only for 'schedule' action)",
			},
		},
		"required": []string{"action"},
	}
}

func (c *CronTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action   string `json:"action"`
		Goal     string `json:"goal"`
		Interval int    `json:"interval_seconds"`
	}

	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	sessionID, ok := ctx.Value(SessionIDKey).(string)
	if !ok {
		return "", fmt.Errorf("missing session ID in context")
	}

	switch args.Action {
	case "clear":
		if err := c.Store.ClearJobs(sessionID); err != nil {
			return "", fmt.Errorf("failed to clear jobs: %v", err)
		}
		return "Successfully cleared all your scheduled jobs.", nil

	case "schedule":
		if args.Interval < 60 {
			return "Error: Minimum interval is 60 seconds to prevent spamming.", nil
		}
		if err := c.Store.AddJob(sessionID, args.Goal, args.Interval); err != nil {
			return "", fmt.Errorf("failed to schedule job: %v", err)
		}
		return fmt.Sprintf("Successfully scheduled job: '%s' every %d seconds.", args.Goal, args.Interval), nil

	default:
		return "Invalid action. Use 'schedule' or 'clear'.", nil
	}
}
