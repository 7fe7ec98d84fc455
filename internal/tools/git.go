package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// gitSubcommands is the closed set of git operations the assistant may run.
// Anything that rewrites history or touches remotes stays out.
var gitSubcommands = map[string]bool{
	"status":   true,
	"diff":     true,
	"log":      true,
	"show":     true,
	"add":      true,
	"commit":   true,
	"branch":   true,
	"checkout": true,
	"stash":    true,
}

type GitTool struct {
	Workdir string
}

func NewGitTool(workdir string) *GitTool {
	return &GitTool{Workdir: workdir}
}

func (g *GitTool) Name() string {
	return "git"
}

func (g *GitTool) Description() string {
	return "Run a git command in the project repository. Subcommands: status, diff, log, show, add, commit, branch, checkout, stash."
}

func (g *GitTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subcommand": map[string]any{
				"type":        "string",
				"enum":        []string{"status", "diff", "log", "show", "add", "commit", "branch", "checkout", "stash"},
				"description": "The git subcommand to run",
			},
			"args": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Additional arguments for the subcommand (e.g. a commit message after -m, file paths)",
			},
		},
		"required": []string{"subcommand"},
	}
}

type gitArgs struct {
	Subcommand string   `json:"subcommand"`
	Args       []string `json:"args"`
}

func (g *GitTool) ValidateArguments(input string) error {
	var args gitArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	if !gitSubcommands[args.Subcommand] {
		return fmt.Errorf("subcommand %q is not allowed", args.Subcommand)
	}
	return nil
}

func (g *GitTool) Execute(ctx context.Context, input string) (string, error) {
	var args gitArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	if !gitSubcommands[args.Subcommand] {
		return fmt.Sprintf("Error: subcommand %q is not allowed", args.Subcommand), nil
	}

	cmdArgs := append([]string{"-C", g.Workdir, args.Subcommand}, args.Args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)

	output, err := cmd.CombinedOutput()
	result := strings.TrimSpace(string(output))
	if result == "" {
		result = "(no output)"
	}

	if err != nil {
		return fmt.Sprintf("git %s failed: %v\nOutput: %s", args.Subcommand, err, result), nil
	}

	return result, nil
}
