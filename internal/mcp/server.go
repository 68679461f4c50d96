// Package mcp exposes read-only event queries to AI agents over the Model
// Context Protocol.
package mcp

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
)

// EventReader is the slice of the events service the tools need.
type EventReader interface {
	List(ctx context.Context, filters events.Filters, limit, offset int) ([]*events.Event, int, error)
	Get(ctx context.Context, id string, viewerID string) (*events.Event, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*events.Event, int, error)
}

type Config struct {
	Name    string
	Version string
	BaseURL string
}

// Server wraps the MCP server with the event tools and resources.
type Server struct {
	mcp   *mcpserver.MCPServer
	tools *EventTools
}

func NewServer(cfg Config, reader EventReader, logger zerolog.Logger) *Server {
	mcpServer := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Query published events: list and search them, read details, and check how many spots are left."),
	)

	srv := &Server{mcp: mcpServer, tools: NewEventTools(reader, cfg.BaseURL, logger)}
	srv.registerTools()
	srv.registerResources()
	return srv
}

// MCPServer returns the underlying server for the transports.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(s.tools.ListEventsTool(), s.tools.ListEventsHandler)
	s.mcp.AddTool(s.tools.SearchEventsTool(), s.tools.SearchEventsHandler)
	s.mcp.AddTool(s.tools.GetEventTool(), s.tools.GetEventHandler)
	s.mcp.AddTool(s.tools.AvailabilityTool(), s.tools.AvailabilityHandler)
}

func (s *Server) registerResources() {
	s.mcp.AddResource(s.tools.UpcomingResource(), s.tools.UpcomingReadHandler)
}
