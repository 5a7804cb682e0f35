package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/siddhartha-04/itcprj/internal/chat"
	"github.com/siddhartha-04/itcprj/internal/domain"
)

const msgNoSprintData = "No sprint data available yet."

// SnapshotSource exposes the latest cache snapshot.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
}

// CurrentSprintTool handles the get_current_sprint MCP tool.
type CurrentSprintTool struct {
	cache SnapshotSource
}

// NewCurrentSprintTool creates a CurrentSprintTool.
func NewCurrentSprintTool(cache SnapshotSource) *CurrentSprintTool {
	return &CurrentSprintTool{cache: cache}
}

// Definition returns the MCP tool definition for get_current_sprint.
func (t *CurrentSprintTool) Definition() mcp.Tool {
	return mcp.NewTool("get_current_sprint",
		mcp.WithDescription("Get every work item in the current sprint with counts, story points and remaining work."),
	)
}

// Handle processes the get_current_sprint tool call.
func (t *CurrentSprintTool) Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, ok := t.cache.Snapshot().Current()
	if !ok {
		return mcp.NewToolResultText(msgNoSprintData), nil
	}
	return mcp.NewToolResultText(chat.FormatCurrentSprint(b)), nil
}

// ListSprintsTool handles the list_all_sprints MCP tool.
type ListSprintsTool struct {
	cache SnapshotSource
}

// NewListSprintsTool creates a ListSprintsTool.
func NewListSprintsTool(cache SnapshotSource) *ListSprintsTool {
	return &ListSprintsTool{cache: cache}
}

// Definition returns the MCP tool definition for list_all_sprints.
func (t *ListSprintsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_all_sprints",
		mcp.WithDescription("Summarise every cached sprint with its work item counts."),
	)
}

// Handle processes the list_all_sprints tool call.
func (t *ListSprintsTool) Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := t.cache.Snapshot()
	if snap == nil || len(snap.Buckets) == 0 {
		return mcp.NewToolResultText(msgNoSprintData), nil
	}
	return mcp.NewToolResultText(chat.FormatOverview(snap)), nil
}
