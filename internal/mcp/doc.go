// Package mcp implements the Model Context Protocol (MCP) server for citeindex.
//
// The server exposes the citation index to AI coding assistants:
//   - reindex: run an incremental or full indexing pass
//   - get_coverage: citation coverage over indexed files and elements
//   - get_citations: knowledge citations attached to one file
//   - check_staleness: validate file citations embedded in knowledge entries
//   - search_knowledge: rank knowledge entries against a query
//   - get_status: index statistics and health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Start it with:
//
//	citeindex mcp --root /path/to/project
//
// # Tool: reindex
//
//	Request:
//	{
//	  "name": "reindex",
//	  "arguments": {"mode": "incremental"}
//	}
//
//	Response:
//	{
//	  "mode": "incremental",
//	  "total_files": 3,
//	  "skipped_files": 120,
//	  "total_citations": 7,
//	  "duration_ms": 42
//	}
//
// # Tool: get_citations
//
//	Request:
//	{
//	  "name": "get_citations",
//	  "arguments": {"path": "internal/auth/token.go"}
//	}
//
//	Response:
//	{
//	  "path": "internal/auth/token.go",
//	  "citations": [
//	    {
//	      "knowledge_id": "k-token",
//	      "title": "Token validation",
//	      "function_name": "ValidateToken",
//	      "start_line": 3,
//	      "end_line": 5,
//	      "match_type": "tag"
//	    }
//	  ]
//	}
//
// # Error Codes
//
//   - -32602: Invalid parameters (bad mode, missing path)
//   - -32603: Internal error (storage or indexing failure)
//   - -32002: Indexing already in progress
//   - -32003: File not indexed
//   - -32004: Empty search query
//
// Errors are returned as *MCPError values carrying the code, a message and
// optional data.
package mcp
