package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/service"
	"github.com/dshills/memex-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "memex-mcp"
)

// ServerVersion is reported during the MCP handshake. main overrides it
// with the build version.
var ServerVersion = "1.0.0"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	svc         service.Service
	errorDetail bool
	log         *zap.Logger
}

// NewServer creates a new MCP server instance backed by svc. When
// errorDetail is set, tool errors carry the Go error chain.
func NewServer(svc service.Service, errorDetail bool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:         mcpServer,
		svc:         svc,
		errorDetail: errorDetail,
		log:         log,
	}

	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	for _, kind := range []types.Kind{types.KindGuide, types.KindContext} {
		s.mcp.AddTool(getDocumentTool(kind), s.handleGet(kind))
		s.mcp.AddTool(listDocumentsTool(kind), s.handleList(kind))
		s.mcp.AddTool(writeDocumentTool(kind), s.handleWrite(kind))
		s.mcp.AddTool(deleteDocumentTool(kind), s.handleDelete(kind))
	}

	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(generateUUIDTool(), s.handleGenerateUUID)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(reindexTool(), s.handleReindex)
}
