package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/memex-mcp/pkg/types"
)

// plural returns the collection name used in tool names
func plural(kind types.Kind) string {
	return string(kind) + "s"
}

// getDocumentTool returns the tool definition for get_guide and get_context
func getDocumentTool(kind types.Kind) mcp.Tool {
	return mcp.Tool{
		Name:        "get_" + string(kind),
		Description: "Retrieve a " + string(kind) + " from the knowledge base by its UUID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the " + string(kind) + " (from list_" + plural(kind) + " or search_knowledge_base)",
				},
			},
			Required: []string{"uuid"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_guides and list_contexts
func listDocumentsTool(kind types.Kind) mcp.Tool {
	return mcp.Tool{
		Name:        "list_" + plural(kind),
		Description: "List all " + plural(kind) + " in the knowledge base with their UUIDs, titles and tags",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// writeDocumentTool returns the tool definition for write_guide and write_context
func writeDocumentTool(kind types.Kind) mcp.Tool {
	return mcp.Tool{
		Name:        "write_" + string(kind),
		Description: "Write a new " + string(kind) + " to the knowledge base or update an existing one",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "Version 4 UUID of the " + string(kind) + " (use generate_uuid for a new one)",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Title of the " + string(kind) + " (max 200 bytes)",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Markdown content of the " + string(kind),
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Tags for categorizing the " + string(kind),
					"items": map[string]interface{}{
						"type": "string",
					},
					"default": []string{},
				},
				"overwrite": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether to overwrite an existing " + string(kind),
					"default":     false,
				},
			},
			Required: []string{"uuid", "title", "content"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_guide and delete_context
func deleteDocumentTool(kind types.Kind) mcp.Tool {
	return mcp.Tool{
		Name:        "delete_" + string(kind),
		Description: "Delete a " + string(kind) + " file and its index entries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"slug": map[string]interface{}{
					"type":        "string",
					"description": "Slug of the " + string(kind) + " (its filename without .md)",
				},
			},
			Required: []string{"slug"},
		},
	}
}

// searchTool returns the tool definition for search_knowledge_base
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Search the knowledge base using semantic search. Searches both guides and contexts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Filter by type (optional)",
					"enum":        []string{"guide", "context"},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// generateUUIDTool returns the tool definition for generate_uuid
func generateUUIDTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_uuid",
		Description: "Generate a new version 4 UUID for a guide or context",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report knowledge base file counts, index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// reindexTool returns the tool definition for reindex_knowledge_base
func reindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_knowledge_base",
		Description: "Rebuild the vector index from the markdown files on disk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Only reindex this collection (optional)",
					"enum":        []string{"guide", "context"},
				},
				"only_new": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, skip documents whose UUID is already indexed",
					"default":     false,
				},
			},
		},
	}
}
