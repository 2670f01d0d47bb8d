package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/anirudhms/vani/internal/chat"
	"github.com/anirudhms/vani/internal/quota"
	"github.com/anirudhms/vani/internal/vault"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the assistant's memory and quota
// state as tools.
type Server struct {
	service *chat.Service
	vault   *vault.Vault
	quotas  *quota.Tracker
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(service *chat.Service, v *vault.Vault, quotas *quota.Tracker) *Server {
	s := &Server{
		service: service,
		vault:   v,
		quotas:  quotas,
	}

	s.mcp = server.NewMCPServer(
		"vani",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(recallFactsTool, s.handleRecallFacts)
	s.mcp.AddTool(userSummaryTool, s.handleUserSummary)
	s.mcp.AddTool(quotaStatusTool, s.handleQuotaStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
