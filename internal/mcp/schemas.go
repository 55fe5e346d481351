package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// reindexTool returns the tool definition for reindex
func reindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex",
		Description: "Rescan the project and regenerate citations between knowledge entries and code elements",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "incremental rescans only changed files, full rebuilds every page and citation",
					"enum":        []string{modeIncremental, modeFull},
					"default":     modeIncremental,
				},
			},
		},
	}
}

// getCoverageTool returns the tool definition for get_coverage
func getCoverageTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_coverage",
		Description: "Report how many indexed files and code elements are cited by knowledge entries",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getCitationsTool returns the tool definition for get_citations
func getCitationsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_citations",
		Description: "List the knowledge citations attached to one indexed file, ordered by start line",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative file path with forward slashes (e.g. internal/api/router.go)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// checkStalenessTool returns the tool definition for check_staleness
func checkStalenessTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_staleness",
		Description: "Validate file citations embedded in knowledge entries against current file content",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"only_stale": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, list only changed or missing citations",
					"default":     true,
				},
			},
		},
	}
}

// searchKnowledgeTool returns the tool definition for search_knowledge
func searchKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search knowledge entries with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (token overlap only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
