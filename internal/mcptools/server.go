// Package mcptools exposes read-only Boards tools over the Model Context Protocol.
//
// Each tool follows the same shape: a struct holding its dependencies,
// Definition() returning the mcp.Tool schema and Handle() serving a call.
// Bad input is reported as a tool error result, never as a Go error.
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/sprints"
)

// ServerName is the MCP server name advertised to clients.
const ServerName = "azure-boards-assistant"

// Version is set at build time via ldflags.
var Version = "dev"

// ItemGetter fetches one full work item.
type ItemGetter interface {
	GetWorkItem(ctx context.Context, id int) (*domain.WorkItem, error)
}

// New creates the MCP server with all Boards tools registered.
func New(cache *sprints.Cache, items ItemGetter) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Read-only access to the cached Azure DevOps sprints and work items of one project."),
	)

	search := NewSearchTool(cache)
	s.AddTool(search.Definition(), search.Handle)

	get := NewGetWorkItemTool(items)
	s.AddTool(get.Definition(), get.Handle)

	current := NewCurrentSprintTool(cache)
	s.AddTool(current.Definition(), current.Handle)

	all := NewListSprintsTool(cache)
	s.AddTool(all.Definition(), all.Handle)

	return s
}

// Serve runs s over stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
