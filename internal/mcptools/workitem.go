package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/chat"
)

// GetWorkItemTool handles the get_work_item MCP tool.
type GetWorkItemTool struct {
	items ItemGetter
}

// NewGetWorkItemTool creates a GetWorkItemTool.
func NewGetWorkItemTool(items ItemGetter) *GetWorkItemTool {
	return &GetWorkItemTool{items: items}
}

// Definition returns the MCP tool definition for get_work_item.
func (t *GetWorkItemTool) Definition() mcp.Tool {
	return mcp.NewTool("get_work_item",
		mcp.WithDescription("Fetch one Azure DevOps work item by ID, with a link to open it in Azure Boards."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Work item ID, e.g. 42 or #42"),
		),
	)
}

// Handle processes the get_work_item tool call.
func (t *GetWorkItemTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := idArg(req, "id")
	if !ok {
		return mcp.NewToolResultError("'id' must be a positive work item number"), nil
	}

	wi, err := t.items.GetWorkItem(ctx, id)
	if errors.Is(err, boards.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("work item #%d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch work item #%d: %v", id, err)), nil
	}
	return mcp.NewToolResultText(chat.FormatCardWithLink(wi)), nil
}

// idArg accepts the id as a JSON number or as a string with an optional '#'.
func idArg(req mcp.CallToolRequest, key string) (int, bool) {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		if v >= 1 && v == float64(int(v)) {
			return int(v), true
		}
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
