package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/satriahrh/white-fusion/domain"
)

const searchToolName = "web_search"

type searchTool struct {
	searcher   domain.WebSearcher
	maxResults int
}

// NewSearchTool exposes a WebSearcher to the agent loop.
func NewSearchTool(searcher domain.WebSearcher, maxResults int) domain.Tool {
	return &searchTool{searcher: searcher, maxResults: maxResults}
}

func (t *searchTool) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        searchToolName,
		Description: "Search the web for current information. Input should be a search query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "search query to look up",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *searchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	results, err := t.searcher.Search(ctx, query, t.maxResults)
	if err != nil {
		return "", err
	}
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}

	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encoding search results: %w", err)
	}
	return string(out), nil
}
