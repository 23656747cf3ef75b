package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/internal/service"
	"github.com/dshills/memex-mcp/pkg/types"
)

// MCP error codes for protocol level failures. Domain failures are reported
// inside the tool result with the codes of types.Classify.
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// handleGet handles get_guide and get_context
func (s *Server) handleGet(kind types.Kind) server.ToolHandlerFunc {
	tool := "get_" + string(kind)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := arguments(request)
		if err != nil {
			return nil, err
		}

		uuid, err := requireString(args, "uuid")
		if err != nil {
			return nil, err
		}

		doc, err := s.svc.Get(ctx, kind, uuid)
		if err != nil {
			return s.toolError(tool, err), nil
		}

		return toolResult(service.NewGetResponse(doc)), nil
	}
}

// handleList handles list_guides and list_contexts
func (s *Server) handleList(kind types.Kind) server.ToolHandlerFunc {
	tool := "list_" + plural(kind)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := s.svc.List(ctx, kind)
		if err != nil {
			return s.toolError(tool, err), nil
		}

		return toolResult(service.NewListResponse(kind, list)), nil
	}
}

// handleWrite handles write_guide and write_context
func (s *Server) handleWrite(kind types.Kind) server.ToolHandlerFunc {
	tool := "write_" + string(kind)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := arguments(request)
		if err != nil {
			return nil, err
		}

		uuid, err := requireString(args, "uuid")
		if err != nil {
			return nil, err
		}
		title, err := requireString(args, "title")
		if err != nil {
			return nil, err
		}
		// Blank content is rejected by the service as a ValidationError
		body, ok := args["content"].(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
				"param":  "content",
				"reason": "missing or not a string",
			})
		}
		tags, err := getStringSlice(args, "tags")
		if err != nil {
			return nil, err
		}

		res, err := s.svc.Write(ctx, kind, content.WriteRequest{
			UUID:      uuid,
			Title:     title,
			Content:   body,
			Tags:      tags,
			Overwrite: getBoolDefault(args, "overwrite", false),
		})
		if err != nil {
			return s.toolError(tool, err), nil
		}

		return toolResult(service.NewWriteResponse(kind, res)), nil
	}
}

// handleDelete handles delete_guide and delete_context
func (s *Server) handleDelete(kind types.Kind) server.ToolHandlerFunc {
	tool := "delete_" + string(kind)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := arguments(request)
		if err != nil {
			return nil, err
		}

		slug, err := requireString(args, "slug")
		if err != nil {
			return nil, err
		}

		res, err := s.svc.Delete(ctx, kind, slug)
		if err != nil {
			return s.toolError(tool, err), nil
		}

		return toolResult(service.NewDeleteResponse(res)), nil
	}
}

// handleSearch handles the search_knowledge_base tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "search_knowledge_base"

	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 5)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	var kind types.Kind
	if t := getStringDefault(args, "type", ""); t != "" {
		k, err := types.ParseKind(t)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid type", map[string]interface{}{
				"param":   "type",
				"value":   t,
				"allowed": []string{"guide", "context"},
			})
		}
		kind = k
	}

	results, err := s.svc.Search(ctx, query, kind, limit)
	if err != nil {
		return s.toolError(tool, err), nil
	}

	return toolResult(service.NewSearchResponse(query, results)), nil
}

// handleGenerateUUID handles the generate_uuid tool invocation
func (s *Server) handleGenerateUUID(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(service.UUIDResponse{
		Success: true,
		UUID:    s.svc.GenerateUUID(ctx),
	}), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.svc.Status(ctx)
	if err != nil {
		return s.toolError("get_status", err), nil
	}

	return toolResult(service.StatusResponse{Success: true, Status: status}), nil
}

// handleReindex handles the reindex_knowledge_base tool invocation
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "reindex_knowledge_base"

	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	var kind types.Kind
	if t := getStringDefault(args, "type", ""); t != "" {
		k, err := types.ParseKind(t)
		if err != nil {
			return s.toolError(tool, err), nil
		}
		kind = k
	}

	counts, err := s.svc.Reindex(ctx, kind, getBoolDefault(args, "only_new", false))
	if err != nil {
		return s.toolError(tool, err), nil
	}

	return toolResult(service.NewReindexResponse(counts)), nil
}

// Helper functions

// toolResult encodes a success payload as the text content of the result
func toolResult(payload interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultText(formatJSON(payload))
}

// toolError reports a domain failure inside the tool result so the client
// sees the classified error rather than a protocol fault
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	kind := types.Classify(err)
	s.log.Warn("tool failed",
		zap.String("tool", tool),
		zap.String("type", kind.Type),
		zap.Error(err),
	)
	return mcp.NewToolResultError(formatJSON(service.NewErrorResponse(err, tool, s.errorDetail)))
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
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

// arguments returns the call arguments; a call without arguments yields an
// empty map
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

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a payload as indented JSON, leaving non-ASCII and
// markup characters unescaped
func formatJSON(data interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Sprintf("%v", data)
	}
	return strings.TrimSuffix(buf.String(), "\n")
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

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return []string{}, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
					"param": key,
					"value": item,
				})
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
			"param": key,
		})
	}
}
