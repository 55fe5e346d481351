package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/citeindex/internal/citation"
	"github.com/dshills/citeindex/internal/coverage"
	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "citeindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	coverage *coverage.Calculator
	checker  *citation.Checker
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// NewServer creates a new MCP server over already wired components. The
// caller owns store and closes it.
func NewServer(idx *indexer.Indexer, calc *coverage.Calculator, checker *citation.Checker, srch *searcher.Searcher, store storage.Storage, logger *slog.Logger) (*Server, error) {
	if idx == nil || calc == nil || checker == nil || srch == nil || store == nil {
		return nil, fmt.Errorf("mcp server requires indexer, coverage, checker, searcher and storage")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  store,
		indexer:  idx,
		coverage: calc,
		checker:  checker,
		searcher: srch,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp: serving on stdio", slog.String("root", s.indexer.Root()))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(reindexTool(), s.handleReindex)
	s.mcp.AddTool(getCoverageTool(), s.handleGetCoverage)
	s.mcp.AddTool(getCitationsTool(), s.handleGetCitations)
	s.mcp.AddTool(checkStalenessTool(), s.handleCheckStaleness)
	s.mcp.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
