package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

const defaultSearchResults = 5

// SearchTool looks up documentation, error messages, and library references
// on the web via DuckDuckGo.
type SearchTool struct {
	client *duckduckgo.Tool
}

// NewSearchTool builds the search tool with maxResults hits per query;
// values below 1 fall back to the default.
func NewSearchTool(maxResults int) (*SearchTool, error) {
	if maxResults < 1 {
		maxResults = defaultSearchResults
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

func (s *SearchTool) Name() string {
	return "search"
}

func (s *SearchTool) Description() string {
	return "Search the web using DuckDuckGo for documentation, error messages, and library references. Optionally restrict results to one site (e.g. pkg.go.dev, stackoverflow.com)."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
			"site": map[string]any{
				"type":        "string",
				"description": "Optional domain to restrict results to, e.g. 'pkg.go.dev'",
			},
		},
		"required": []string{"query"},
	}
}

type searchArgs struct {
	Query string `json:"query"`
	Site  string `json:"site"`
}

func (s *SearchTool) ValidateArguments(input string) error {
	var args searchArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	res, err := s.client.Call(ctx, composeQuery(args))
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

// composeQuery folds the optional site restriction into the query string.
func composeQuery(args searchArgs) string {
	query := strings.TrimSpace(args.Query)
	site := strings.TrimSpace(args.Site)
	if site == "" {
		return query
	}
	return fmt.Sprintf("site:%s %s", site, query)
}
