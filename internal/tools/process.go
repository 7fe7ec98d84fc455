package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProcessTool inspects and manages local processes: dev servers, test
// watchers, anything the assistant started through the shell and needs to
// find again or shut down.
type ProcessTool struct{}

func NewProcessTool() *ProcessTool {
	return &ProcessTool{}
}

func (p *ProcessTool) Name() string {
	return "process"
}

func (p *ProcessTool) Description() string {
	return "Inspect and manage local processes. Actions: 'list' (matching a name pattern), 'inspect' (details for a PID), 'terminate' (SIGTERM a PID)."
}

func (p *ProcessTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"list", "inspect", "terminate"},
				"description": "The process action to perform.",
			},
			"pattern": map[string]any{
				"type":        "string",
				"description": "Process name pattern for 'list' (e.g. 'node', 'go test').",
			},
			"pid": map[string]any{
				"type":        "integer",
				"description": "Process ID for 'inspect' and 'terminate'.",
			},
		},
		"required": []string{"action"},
	}
}

func (p *ProcessTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action  string `json:"action"`
		Pattern string `json:"pattern"`
		PID     int    `json:"pid"`
	}

	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	switch args.Action {
	case "list":
		return p.list(ctx, args.Pattern)
	case "inspect":
		if args.PID <= 0 {
			return "Error: pid is required for 'inspect'", nil
		}
		return p.inspect(ctx, args.PID)
	case "terminate":
		if args.PID <= 0 {
			return "Error: pid is required for 'terminate'", nil
		}
		return p.terminate(ctx, args.PID)
	default:
		return "Invalid action. Use 'list', 'inspect', or 'terminate'.", nil
	}
}

func (p *ProcessTool) list(ctx context.Context, pattern string) (string, error) {
	if pattern == "" {
		return "Error: pattern is required for 'list'", nil
	}

	cmd := exec.CommandContext(ctx, "pgrep", "-a", "-f", pattern)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// pgrep exits 1 when nothing matched
		if strings.TrimSpace(string(output)) == "" {
			return fmt.Sprintf("No processes matching %q", pattern), nil
		}
		return fmt.Sprintf("Error listing processes: %v\nOutput: %s", err, string(output)), nil
	}

	return strings.TrimSpace(string(output)), nil
}

func (p *ProcessTool) inspect(ctx context.Context, pid int) (string, error) {
	cmd := exec.CommandContext(ctx, "ps", "-p", strconv.Itoa(pid), "-o", "pid,ppid,etime,%cpu,%mem,command")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Sprintf("No such process %d", pid), nil
	}
	return strings.TrimSpace(string(output)), nil
}

func (p *ProcessTool) terminate(ctx context.Context, pid int) (string, error) {
	cmd := exec.CommandContext(ctx, "kill", strconv.Itoa(pid))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Sprintf("Error terminating %d: %v\nOutput: %s", pid, err, string(output)), nil
	}
	return fmt.Sprintf("Sent SIGTERM to process %d", pid), nil
}
