package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound    = -32001 // No document with the given id
	ErrorCodeIngestFailed        = -32002 // Document ingestion did not complete
	ErrorCodeUnsupportedDocument = -32003 // File type cannot be extracted
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validateFilePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	ownerID := getStringDefault(args, "owner_id", "")

	doc, err := s.pipeline.IngestFile(ctx, path, ownerID)
	if err != nil {
		data := map[string]interface{}{"error": err.Error()}
		if doc != nil {
			// The failed record is kept; the client can retry or delete it.
			data["document_id"] = doc.ID
		}
		code := ErrorCodeIngestFailed
		if errors.Is(err, types.ErrUnsupportedInput) {
			code = ErrorCodeUnsupportedDocument
		}
		return nil, newMCPError(code, "ingestion failed", data)
	}

	stats, err := s.store.GetDocumentStats(ctx, doc.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read document statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(statusResponse(stats))), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", searcher.DefaultTopK)
	if topK < 1 || topK > searcher.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxTopK), map[string]interface{}{
				"param": "top_k",
				"value": topK,
			})
	}

	searchMode := getStringDefault(args, "search_mode", "hybrid")
	if searchMode != "hybrid" && searchMode != "vector" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "vector"},
		})
	}

	req := searcher.Request{
		Query:       query,
		OwnerID:     getStringDefault(args, "owner_id", ""),
		DocumentIDs: getStringSlice(args, "document_ids"),
		TopK:        topK,
		Hybrid:      searchMode == "hybrid",
		UseReranker: getBoolDefault(args, "use_reranker", false),
		MinScore:    getFloatDefault(args, "min_score", 0),
	}

	results, err := s.searcher.Search(ctx, req)
	if err != nil {
		if errors.Is(err, types.ErrEmptyContent) {
			return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]interface{}{
			"rank":        r.Rank,
			"score":       r.Score,
			"chunk_id":    r.ChunkID,
			"document_id": r.DocumentID,
			"text":        r.Text,
			"metadata":    r.Metadata,
		})
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(items),
		"results": items,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDocumentStatus handles the get_document_status tool invocation
func (s *Server) handleGetDocumentStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, ok := args["document_id"].(string)
	if !ok || documentID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}

	stats, err := s.store.GetDocumentStats(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
			"document_id": documentID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get document status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(statusResponse(stats))), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	ownerID := getStringDefault(args, "owner_id", "")

	docs, err := s.store.ListDocuments(ctx, ownerID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list documents", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentResponse(doc))
	}
	response := map[string]interface{}{
		"count":     len(items),
		"documents": items,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, ok := args["document_id"].(string)
	if !ok || documentID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}

	err := s.store.DeleteDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
			"document_id": documentID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete document", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":     true,
		"document_id": documentID,
	})), nil
}

// Helper functions

// statusResponse formats document statistics for tool output.
func statusResponse(stats *storage.DocumentStats) map[string]interface{} {
	response := map[string]interface{}{
		"document": documentResponse(stats.Document),
		"statistics": map[string]interface{}{
			"chunks":              stats.ChunkCount,
			"embeddings":          stats.EmbeddingCount,
			"degraded_embeddings": stats.DegradedCount,
			"total_tokens":        stats.TotalTokenCount,
		},
	}
	return response
}

func documentResponse(doc *storage.Document) map[string]interface{} {
	out := map[string]interface{}{
		"id":         doc.ID,
		"name":       doc.Name,
		"path":       doc.FilePath,
		"status":     doc.Status,
		"pages":      doc.PageCount,
		"created_at": doc.CreatedAt.Format(time.RFC3339),
		"updated_at": doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.OwnerID != "" {
		out["owner_id"] = doc.OwnerID
	}
	if doc.Error != "" {
		out["error"] = doc.Error
	}
	return out
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

// validateFilePath checks that path names an existing regular file.
func validateFilePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrPathIsDirectory
	}
	return nil
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

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
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

// getStringSlice extracts a string array parameter; non-strings are skipped.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrPathIsDirectory = errors.New("path is a directory, not a file")
)
