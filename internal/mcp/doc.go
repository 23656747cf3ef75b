// Package mcp implements the Model Context Protocol (MCP) server for memex.
//
// The server exposes the knowledge base to AI assistants over stdio:
//   - get_guide, list_guides, write_guide, delete_guide
//   - get_context, list_contexts, write_context, delete_context
//   - search_knowledge_base: semantic search over both collections
//   - generate_uuid: a fresh version 4 UUID for write_guide or write_context
//   - get_status: file counts, index statistics and health
//   - reindex_knowledge_base: rebuild the index from the markdown files
//
// # Basic Usage
//
// The MCP server is started via the serve command:
//
//	memex serve --kb ~/notes/kb
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout. Logs go to stderr.
//
// # Tool: write_guide
//
//	Request:
//	{
//	  "name": "write_guide",
//	  "arguments": {
//	    "uuid": "3f2b8c1e-6d4a-4f7b-9c2e-1a5d7e9f0b3c",
//	    "title": "Release Checklist",
//	    "content": "# Tag\n\nTag the release.",
//	    "tags": ["release"],
//	    "overwrite": false
//	  }
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "action": "created",
//	  "uuid": "3f2b8c1e-6d4a-4f7b-9c2e-1a5d7e9f0b3c",
//	  "slug": "release-checklist",
//	  "title": "Release Checklist",
//	  "file": "guides/release-checklist.md",
//	  "tags": ["release"],
//	  "message": "Guide created. Use UUID '3f2b8c1e-...' to retrieve it."
//	}
//
// # Tool: search_knowledge_base
//
//	Request:
//	{
//	  "name": "search_knowledge_base",
//	  "arguments": {"query": "how do we tag a release", "type": "guide", "limit": 5}
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "query": "how do we tag a release",
//	  "total_results": 1,
//	  "results": [
//	    {
//	      "score": 0.8123,
//	      "type": "guide",
//	      "slug": "release-checklist",
//	      "uuid": "3f2b8c1e-6d4a-4f7b-9c2e-1a5d7e9f0b3c",
//	      "title": "Release Checklist",
//	      "content_preview": "Tag\n\nTag the release.",
//	      "matched_type": "section"
//	    }
//	  ]
//	}
//
// # Error Handling
//
// Missing or malformed arguments are protocol errors with code -32602.
// Failures inside the knowledge base come back as a tool result flagged
// isError, carrying a classified payload:
//
//	{
//	  "success": false,
//	  "error": {
//	    "type": "NotFound",
//	    "message": "guide 3f2b8c1e-...: not found",
//	    "context": {"tool": "get_guide"},
//	    "details": {"category": "not_found", "code": -32012}
//	  }
//	}
//
// details.debug holds the Go error chain when MEMEX_ERROR_DETAIL is set.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "memex": {
//	      "command": "/usr/local/bin/memex",
//	      "args": ["serve"],
//	      "env": {
//	        "MEMEX_KB": "/home/me/kb",
//	        "OLLAMA_URL": "http://localhost:11434"
//	      }
//	    }
//	  }
//	}
package mcp
