package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // File has no page in the index
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const (
	modeIncremental = "incremental"
	modeFull        = "full"
)

// handleReindex handles the reindex tool invocation
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	mode := strings.ToLower(getStringDefault(args, "mode", modeIncremental))
	if mode != modeIncremental && mode != modeFull {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{modeIncremental, modeFull},
		})
	}

	var response map[string]interface{}
	if mode == modeFull {
		stats, err := s.indexer.ReindexFull(ctx)
		if err != nil {
			return nil, reindexError(err)
		}
		response = map[string]interface{}{
			"mode":            mode,
			"total_files":     stats.TotalFiles,
			"total_citations": stats.TotalCitations,
			"duration_ms":     stats.DurationMs,
		}
	} else {
		stats, err := s.indexer.ReindexIncremental(ctx)
		if err != nil {
			return nil, reindexError(err)
		}
		response = map[string]interface{}{
			"mode":            mode,
			"total_files":     stats.TotalFiles,
			"skipped_files":   stats.SkippedFiles,
			"total_citations": stats.TotalCitations,
			"duration_ms":     stats.DurationMs,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func reindexError(err error) error {
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	return newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// handleGetCoverage handles the get_coverage tool invocation
func (s *Server) handleGetCoverage(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.coverage.Coverage(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to compute coverage", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"total_files":      stats.TotalFiles,
		"covered_files":    stats.CoveredFiles,
		"total_elements":   stats.TotalElements,
		"covered_elements": stats.CoveredElements,
		"coverage_percent": stats.CoveragePercent,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCitations handles the get_citations tool invocation
func (s *Server) handleGetCitations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["path"].(string)
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if _, err := s.storage.GetPage(ctx, path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNotIndexed, "file not indexed", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to get page", map[string]interface{}{
			"error": err.Error(),
		})
	}

	citations, err := s.storage.ListCitationsForFile(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list citations", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]interface{}, 0, len(citations))
	for _, c := range citations {
		items = append(items, map[string]interface{}{
			"knowledge_id":  c.KnowledgeID,
			"title":         c.Title,
			"category":      c.Category,
			"confidence":    c.Confidence,
			"function_name": c.ElementName,
			"start_line":    c.StartLine,
			"end_line":      c.EndLine,
			"match_type":    string(c.MatchType),
		})
	}

	response := map[string]interface{}{
		"path":      path,
		"citations": items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCheckStaleness handles the check_staleness tool invocation
func (s *Server) handleCheckStaleness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	onlyStale := getBoolDefault(args, "only_stale", true)

	report, err := s.checker.Staleness(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "staleness check failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	listed := report.Citations
	if onlyStale {
		listed = report.Stale()
	}
	items := make([]interface{}, 0, len(listed))
	for _, c := range listed {
		item := map[string]interface{}{
			"knowledge_id": c.KnowledgeID,
			"title":        c.Title,
			"path":         c.Path,
			"status":       string(c.Status),
			"stored_hash":  c.StoredHash,
		}
		if c.CurrentHash != "" {
			item["current_hash"] = c.CurrentHash
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"total":     report.Total,
		"valid":     report.Valid,
		"changed":   report.Changed,
		"missing":   report.Missing,
		"citations": items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchKnowledge handles the search_knowledge tool invocation
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	if mode != searcher.SearchModeHybrid && mode != searcher.SearchModeVector && mode != searcher.SearchModeKeyword {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   mode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		UseCache: true,
	})
	if errors.Is(err, searcher.ErrInvalidRequest) || errors.Is(err, searcher.ErrEmbedderUnavailable) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "search_mode",
			"value": mode,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"knowledge_id":    r.KnowledgeID,
			"title":           r.Title,
			"category":        r.Category,
			"tags":            r.Tags,
			"relevance_score": r.RelevanceScore,
		})
	}

	response := map[string]interface{}{
		"results":        results,
		"total_results":  resp.TotalResults,
		"search_mode":    string(resp.SearchMode),
		"cache_hit":      resp.CacheHit,
		"vector_results": resp.VectorResults,
		"text_results":   resp.TextResults,
		"duration_ms":    resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"root":    s.indexer.Root(),
		"running": s.indexer.Running(),
		"statistics": map[string]interface{}{
			"pages_count":      status.PagesCount,
			"citations_count":  status.CitationsCount,
			"knowledge_count":  status.KnowledgeCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"vector_extension":     status.Health.VectorExtension,
		},
	}
	if !status.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = status.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// arguments returns the argument map of a request. Absent arguments are
// an empty map.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
