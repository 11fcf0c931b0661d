// Package tools exposes the session and the partitioned API as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dgellow/riot-front/internal/api"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const serverVersion = "1.0.0"

// Fetcher reads one endpoint of the partitioned API
type Fetcher interface {
	Fetch(ctx context.Context, state session.State, name string, page api.Page) (json.RawMessage, error)
}

// Server hosts the MCP tools over streamable HTTP. Tool handlers read the
// session handle that the HTTP middleware put in the request context.
type Server struct {
	name      string
	mcpServer *mcpserver.MCPServer
	transport *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and mounts it under endpointPath
func NewServer(name, endpointPath string, fetcher Fetcher) *Server {
	s := &Server{name: name}

	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(s.onRegisterSession)

	s.mcpServer = mcpserver.NewMCPServer(name, serverVersion,
		mcpserver.WithHooks(hooks),
		mcpserver.WithToolCapabilities(true),
	)
	register(s.mcpServer, fetcher)

	s.transport = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return r.Context()
		}),
	)
	return s
}

// Handler returns the HTTP handler of the MCP endpoint
func (s *Server) Handler() http.Handler {
	return s.transport
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Shutdown closes the MCP transport
func (s *Server) Shutdown(ctx context.Context) error {
	return s.transport.Shutdown(ctx)
}

func (s *Server) onRegisterSession(ctx context.Context, session mcpserver.ClientSession) {
	log.LogInfoWithFields("tools", "MCP session registered", map[string]any{
		"server":    s.name,
		"sessionID": session.SessionID(),
	})
}

// register adds every tool to mcpServer
func register(mcpServer *mcpserver.MCPServer, fetcher Fetcher) {
	mcpServer.AddTool(sessionStatusTool(), sessionStatusHandler())
	for _, def := range endpointTools {
		mcpServer.AddTool(def.tool(), endpointHandler(fetcher, def.endpoint))
	}
}
