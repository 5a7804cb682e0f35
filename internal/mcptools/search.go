package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/siddhartha-04/itcprj/internal/sprints"
)

// Searcher matches a term against cached items.
type Searcher interface {
	Search(term string) []sprints.SearchHit
}

// SearchTool handles the search_work_items MCP tool.
type SearchTool struct {
	cache Searcher
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(cache Searcher) *SearchTool {
	return &SearchTool{cache: cache}
}

// Definition returns the MCP tool definition for search_work_items.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_work_items",
		mcp.WithDescription("Search cached Azure DevOps work items (issues, tasks, bugs) by keyword in title, description or type."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keyword to search for"),
		),
		mcp.WithString("type",
			mcp.Description("Work item type filter: Issue, Task, Bug, Epic or All (default)"),
		),
	)
}

type searchResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	State       string  `json:"state"`
	Sprint      string  `json:"sprint"`
	AssignedTo  string  `json:"assignedTo"`
	StoryPoints float64 `json:"storyPoints"`
}

// Handle processes the search_work_items tool call.
func (t *SearchTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	typ := strings.TrimSpace(req.GetString("type", ""))

	results := []searchResult{}
	for _, h := range t.cache.Search(query) {
		if typ != "" && !strings.EqualFold(typ, "all") && !strings.EqualFold(typ, h.Item.Type) {
			continue
		}
		results = append(results, searchResult{
			ID:          h.Item.ID,
			Title:       h.Item.Title,
			Type:        h.Item.Type,
			State:       h.Item.State,
			Sprint:      h.Sprint,
			AssignedTo:  h.Item.AssignedTo,
			StoryPoints: h.Item.StoryPoints,
		})
	}

	out, err := json.MarshalIndent(map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
